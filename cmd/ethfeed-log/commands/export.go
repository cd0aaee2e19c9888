package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
	"github.com/ethfeed/ethfeed-go/pkg/log"
)

// RunExport exports the capture file to the specified format.
func RunExport(path, format, output string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	// Determine output writer
	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := jsonrpc.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	// Write header
	header := []string{"timestamp", "connection_id", "direction", "layer", "category", "endpoint", "type", "request_id", "method", "server_id", "local_id"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		// Determine event type and type-specific columns
		eventType := "unknown"
		requestID := ""
		method := ""
		serverID := ""
		localID := ""
		switch {
		case event.Frame != nil:
			eventType = "frame"
		case event.Message != nil:
			eventType = event.Message.Type.String()
			if event.Message.RequestID != 0 {
				requestID = fmt.Sprintf("%d", event.Message.RequestID)
			}
			method = event.Message.Method
			serverID = event.Message.ServerID
		case event.Subscription != nil:
			eventType = event.Subscription.Op.String()
			serverID = event.Subscription.ServerID
			localID = event.Subscription.LocalID
		case event.StateChange != nil:
			eventType = "state"
		case event.Error != nil:
			eventType = "error"
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.Endpoint,
			eventType,
			requestID,
			method,
			serverID,
			localID,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}
