package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ethfeed/ethfeed-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Methods           map[string]int
	SubscriptionOps   map[log.SubscriptionOp]int
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Endpoint   string
	Frames     int
	FrameBytes int
}

// RunStats analyzes the capture file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
		Methods:           make(map[string]int),
		SubscriptionOps:   make(map[log.SubscriptionOp]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		// Track time range
		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		// Track connection stats
		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if event.Endpoint != "" && conn.Endpoint == "" {
			conn.Endpoint = event.Endpoint
		}

		// Count frames and bytes per connection
		if event.Frame != nil {
			conn.Frames++
			conn.FrameBytes += event.Frame.Size
		}

		// Count request methods
		if event.Message != nil && event.Message.Type == log.MessageTypeRequest {
			stats.Methods[event.Message.Method]++
		}

		// Count subscription lifecycle transitions
		if event.Subscription != nil {
			stats.SubscriptionOps[event.Subscription.Op]++
		}

		// Count errors
		if event.Error != nil {
			stats.Errors++
		}
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Capture Statistics ===")
	fmt.Fprintln(w)

	// Time range
	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	// Total events
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	// Events by layer
	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerClient} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by category
	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategorySubscription, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Events by direction
	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", dir.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	// Request methods
	if len(stats.Methods) > 0 {
		fmt.Fprintln(w, "Request Methods:")
		methods := make([]string, 0, len(stats.Methods))
		for m := range stats.Methods {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			fmt.Fprintf(w, "  %-24s %d\n", m+":", stats.Methods[m])
		}
		fmt.Fprintln(w)
	}

	// Subscription lifecycle
	if len(stats.SubscriptionOps) > 0 {
		fmt.Fprintln(w, "Subscription Lifecycle:")
		for _, op := range []log.SubscriptionOp{log.SubscriptionInstalled, log.SubscriptionRotated, log.SubscriptionRemoved, log.SubscriptionUnbound} {
			if count := stats.SubscriptionOps[op]; count > 0 {
				fmt.Fprintf(w, "  %-14s %d\n", op.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	// Connections
	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		// Sort by first seen time
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w, "")
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenConnID(c.id), c.stats.Events, duration)
			if c.stats.Endpoint != "" {
				fmt.Fprintf(w, "           Endpoint: %s\n", c.stats.Endpoint)
			}
			if c.stats.Frames > 0 {
				fmt.Fprintf(w, "           Frames: %d (%d bytes)\n", c.stats.Frames, c.stats.FrameBytes)
			}
		}
	}

	// Errors
	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
