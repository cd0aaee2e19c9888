// Package commands implements the ethfeed-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethfeed/ethfeed-go/pkg/log"
)

// FilterFlags carries the raw filter flag values shared by the view and
// filter commands.
type FilterFlags struct {
	ConnID    string
	Layer     string
	Direction string
	Category  string
	Method    string
	LocalID   string
	TimeStart string
	TimeEnd   string
}

// BuildFilter parses the flag values into a capture filter.
func BuildFilter(flags FilterFlags) (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: flags.ConnID,
		Method:       flags.Method,
		LocalID:      flags.LocalID,
	}

	if flags.Layer != "" {
		l, err := ParseLayerFlag(flags.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if flags.Direction != "" {
		d, err := ParseDirectionFlag(flags.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if flags.Category != "" {
		c, err := ParseCategoryFlag(flags.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	if flags.TimeStart != "" {
		ts, err := time.Parse(time.RFC3339, flags.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start: %w", err)
		}
		filter.TimeStart = &ts
	}
	if flags.TimeEnd != "" {
		te, err := time.Parse(time.RFC3339, flags.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end: %w", err)
		}
		filter.TimeEnd = &te
	}

	return filter, nil
}

// ParseLayerFlag parses a layer string from a command-line flag
// (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "client":
		return log.LayerClient, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or client)", s)
	}
}

// ParseDirectionFlag parses a direction string from a command-line flag
// (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category string from a command-line flag
// (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return log.CategoryMessage, nil
	case "subscription":
		return log.CategorySubscription, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, subscription, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)
	dir := event.Direction.String()

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = "Frame"
	case event.Message != nil:
		typeLabel = event.Message.Type.String()
	case event.Subscription != nil:
		typeLabel = event.Subscription.Op.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, connID, dir, event.Layer.String(), typeLabel)

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.Subscription != nil:
		formatSubscriptionDetails(w, event.Subscription)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

// formatFrameDetails writes frame-specific details.
func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprintf(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// formatMessageDetails writes message-specific details.
func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	switch msg.Type {
	case log.MessageTypeRequest:
		fmt.Fprintf(w, "  RequestID: %d\n", msg.RequestID)
		fmt.Fprintf(w, "  Method: %s\n", msg.Method)

	case log.MessageTypeResponse:
		fmt.Fprintf(w, "  RequestID: %d\n", msg.RequestID)
		if msg.ErrorCode != nil {
			fmt.Fprintf(w, "  ErrorCode: %d\n", *msg.ErrorCode)
		}

	case log.MessageTypeNotification:
		fmt.Fprintf(w, "  ServerID: %s\n", msg.ServerID)
	}
}

// formatSubscriptionDetails writes subscription lifecycle details.
func formatSubscriptionDetails(w io.Writer, sub *log.SubscriptionEvent) {
	if sub.LocalID != "" {
		fmt.Fprintf(w, "  LocalID: %s\n", sub.LocalID)
	}
	if sub.ServerID != "" {
		fmt.Fprintf(w, "  ServerID: %s\n", sub.ServerID)
	}
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}
