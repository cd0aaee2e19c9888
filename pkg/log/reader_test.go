package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCapture writes a small capture file with a known mix of events.
func writeTestCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.eflog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	base := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{
			Timestamp:    base,
			ConnectionID: "conn-1",
			Direction:    DirectionOut,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			Message:      &MessageEvent{Type: MessageTypeRequest, RequestID: 1, Method: "eth_subscribe"},
		},
		{
			Timestamp:    base.Add(1 * time.Second),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			Message:      &MessageEvent{Type: MessageTypeResponse, RequestID: 1},
		},
		{
			Timestamp:    base.Add(2 * time.Second),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerClient,
			Category:     CategorySubscription,
			Subscription: &SubscriptionEvent{Op: SubscriptionInstalled, LocalID: "0xabc", ServerID: "0x01"},
		},
		{
			Timestamp:    base.Add(3 * time.Second),
			ConnectionID: "conn-2",
			Direction:    DirectionIn,
			Layer:        LayerWire,
			Category:     CategoryMessage,
			Message:      &MessageEvent{Type: MessageTypeNotification, ServerID: "0x01"},
		},
	}
	for _, event := range events {
		logger.Log(event)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var events []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, event)
	}
}

func TestReaderReadsAll(t *testing.T) {
	path := writeTestCapture(t)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	events := readAll(t, r)
	if len(events) != 4 {
		t.Errorf("read %d events, want 4", len(events))
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.eflog")); err == nil {
		t.Error("NewReader succeeded on missing file")
	}
}

func TestReaderFilters(t *testing.T) {
	path := writeTestCapture(t)
	in := DirectionIn
	wire := LayerWire
	subs := CategorySubscription
	afterSecond := time.Date(2025, 11, 3, 12, 0, 1, 500000000, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"connection", Filter{ConnectionID: "conn-1"}, 3},
		{"direction", Filter{Direction: &in}, 3},
		{"layer", Filter{Layer: &wire}, 3},
		{"category", Filter{Category: &subs}, 1},
		{"method", Filter{Method: "eth_subscribe"}, 1},
		{"local id", Filter{LocalID: "0xabc"}, 1},
		{"time start", Filter{TimeStart: &afterSecond}, 2},
		{"time end", Filter{TimeEnd: &afterSecond}, 2},
		{"combined", Filter{ConnectionID: "conn-1", Direction: &in}, 2},
		{"no match", Filter{ConnectionID: "conn-9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer r.Close()

			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("matched %d events, want %d", got, tt.want)
			}
		})
	}
}
