package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethfeed/ethfeed-go/pkg/log"
)

func readAllEvents(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
	return events
}

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-2", Category: log.CategoryMessage},
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryMessage},
	}

	path := writeCaptureFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.eflog")

	count, err := RunFilter(path, outPath, log.Filter{ConnectionID: "conn-1"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}

	got := readAllEvents(t, outPath)
	if len(got) != 2 {
		t.Fatalf("expected 2 events in output, got %d", len(got))
	}
	for _, e := range got {
		if e.ConnectionID != "conn-1" {
			t.Errorf("expected conn-1, got %s", e.ConnectionID)
		}
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, ConnectionID: "conn-1", Category: log.CategoryMessage},
		{Timestamp: base.Add(time.Hour), ConnectionID: "conn-1", Category: log.CategoryMessage},
		{Timestamp: base.Add(2 * time.Hour), ConnectionID: "conn-1", Category: log.CategoryMessage},
	}

	path := writeCaptureFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.eflog")

	filter, err := BuildFilter(FilterFlags{
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(90 * time.Minute).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("BuildFilter failed: %v", err)
	}

	count, err := RunFilter(path, outPath, filter)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	// Only the 11:00 event falls inside the window.
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestFilterByMethod(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp: ts,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeRequest, RequestID: 1, Method: "eth_subscribe"},
		},
		{
			Timestamp: ts,
			Layer:     log.LayerWire,
			Category:  log.CategoryMessage,
			Message:   &log.MessageEvent{Type: log.MessageTypeRequest, RequestID: 2, Method: "eth_unsubscribe"},
		},
	}

	path := writeCaptureFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.eflog")

	count, err := RunFilter(path, outPath, log.Filter{Method: "eth_subscribe"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	got := readAllEvents(t, outPath)
	if len(got) != 1 || got[0].Message == nil || got[0].Message.Method != "eth_subscribe" {
		t.Errorf("expected single eth_subscribe event, got %+v", got)
	}
}

func TestFilterByLocalID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{
			Timestamp:    ts,
			Layer:        log.LayerClient,
			Category:     log.CategorySubscription,
			Subscription: &log.SubscriptionEvent{Op: log.SubscriptionInstalled, LocalID: "0xaaaa", ServerID: "0x01"},
		},
		{
			Timestamp:    ts,
			Layer:        log.LayerClient,
			Category:     log.CategorySubscription,
			Subscription: &log.SubscriptionEvent{Op: log.SubscriptionInstalled, LocalID: "0xbbbb", ServerID: "0x02"},
		},
		{
			Timestamp:    ts,
			Layer:        log.LayerClient,
			Category:     log.CategorySubscription,
			Subscription: &log.SubscriptionEvent{Op: log.SubscriptionRemoved, LocalID: "0xaaaa"},
		},
	}

	path := writeCaptureFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.eflog")

	count, err := RunFilter(path, outPath, log.Filter{LocalID: "0xaaaa"})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	// Install and removal of the same subscription.
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestFilterCommandByLayer(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, Layer: log.LayerTransport, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerWire, Category: log.CategoryMessage},
		{Timestamp: ts, Layer: log.LayerClient, Category: log.CategoryMessage},
	}

	path := writeCaptureFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.eflog")

	wire := log.LayerWire
	count, err := RunFilter(path, outPath, log.Filter{Layer: &wire})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	got := readAllEvents(t, outPath)
	if len(got) != 1 || got[0].Layer != log.LayerWire {
		t.Errorf("expected single wire event, got %+v", got)
	}
}

func TestFilterOutputIsValidCapture(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1", Category: log.CategoryMessage},
	}

	path := writeCaptureFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.eflog")

	if _, err := RunFilter(path, outPath, log.Filter{}); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	// The output must round-trip through the reader.
	got := readAllEvents(t, outPath)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].ConnectionID != "conn-1" {
		t.Errorf("expected conn-1, got %s", got[0].ConnectionID)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, got[0].Timestamp)
	}
}
