package pubsub

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/ethfeed/ethfeed-go/pkg/broadcast"
	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
)

func newTestRequest(t *testing.T, id uint64, params any) *jsonrpc.SerializedRequest {
	t.Helper()
	req, err := jsonrpc.NewRequest(id, jsonrpc.MethodSubscribe, params)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func notification(serverID jsonrpc.ServerID, result string) *jsonrpc.Notification {
	return &jsonrpc.Notification{Subscription: serverID, Result: json.RawMessage(result)}
}

func mustTryRecv(t *testing.T, sub *RawSubscription) string {
	t.Helper()
	raw, err := sub.TryRecv()
	if err != nil {
		t.Fatalf("TryRecv() error = %v", err)
	}
	return string(raw)
}

func TestUpsertCreatesRecord(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})

	sub := m.Upsert(req, "0xaa")
	if sub == nil {
		t.Fatal("Upsert() = nil")
	}
	if got, want := sub.LocalID(), req.ParamsHash(); got != want {
		t.Errorf("LocalID() = %s, want %s", got, want)
	}
	if got := m.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}

	localID, ok := m.LocalIDFor("0xaa")
	if !ok {
		t.Fatal("LocalIDFor() not found for fresh server id")
	}
	if localID != req.ParamsHash() {
		t.Errorf("LocalIDFor() = %s, want %s", localID, req.ParamsHash())
	}
	serverID, ok := m.ServerIDFor(req.ParamsHash())
	if !ok || serverID != "0xaa" {
		t.Errorf("ServerIDFor() = %q, %v, want %q, true", serverID, ok, "0xaa")
	}
}

func TestUpsertDeduplicates(t *testing.T) {
	m := NewManager()
	first := newTestRequest(t, 1, []string{"newHeads"})
	second := newTestRequest(t, 7, []string{"newHeads"})

	a := m.Upsert(first, "0xaa")
	b := m.Upsert(second, "0xbb")

	if got := m.Count(); got != 1 {
		t.Fatalf("Count() after duplicate upsert = %d, want 1", got)
	}
	if !a.SameChannel(b) {
		t.Error("handles from duplicate upserts do not share a channel")
	}

	if _, ok := m.LocalIDFor("0xaa"); ok {
		t.Error("rotated-out server id still resolves")
	}
	if localID, ok := m.LocalIDFor("0xbb"); !ok || localID != first.ParamsHash() {
		t.Errorf("LocalIDFor(new id) = %s, %v, want %s, true", localID, ok, first.ParamsHash())
	}

	if !m.Notify(notification("0xbb", `"0x01"`)) {
		t.Fatal("Notify() via new server id = false, want true")
	}
	for i, sub := range []*RawSubscription{a, b} {
		if got := mustTryRecv(t, sub); got != `"0x01"` {
			t.Errorf("handle %d received %s, want %q", i, got, `"0x01"`)
		}
	}
}

func TestNotifyOldServerIDAfterRotation(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})

	sub := m.Upsert(req, "0xaa")
	m.Upsert(newTestRequest(t, 2, []string{"newHeads"}), "0xbb")

	if m.Notify(notification("0xaa", `"0x01"`)) {
		t.Error("Notify() via rotated-out id = true, want false")
	}
	if !sub.IsEmpty() {
		t.Error("dangling frame was delivered")
	}
}

func TestUpsertServerIDReuseRepoints(t *testing.T) {
	m := NewManager()
	heads := newTestRequest(t, 1, []string{"newHeads"})
	logs := newTestRequest(t, 2, []any{"logs", map[string]string{"address": "0x0000000000000000000000000000000000000001"}})

	headsSub := m.Upsert(heads, "0xaa")
	logsSub := m.Upsert(logs, "0xaa")

	if localID, ok := m.LocalIDFor("0xaa"); !ok || localID != logs.ParamsHash() {
		t.Errorf("LocalIDFor(reused id) = %s, %v, want %s, true", localID, ok, logs.ParamsHash())
	}
	if _, ok := m.ServerIDFor(heads.ParamsHash()); ok {
		t.Error("evicted subscription still has a server id")
	}
	if got := m.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2; records must survive id eviction", got)
	}

	if !m.Notify(notification("0xaa", `"0x02"`)) {
		t.Fatal("Notify() = false, want true")
	}
	if _, err := headsSub.TryRecv(); !errors.Is(err, broadcast.ErrEmpty) {
		t.Errorf("evicted subscription TryRecv() error = %v, want ErrEmpty", err)
	}
	if got := mustTryRecv(t, logsSub); got != `"0x02"` {
		t.Errorf("reused id delivered %s, want %q", got, `"0x02"`)
	}
}

func TestNotifyFansOut(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})

	a := m.Upsert(req, "0xaa")
	b, ok := m.GetSubscription(req.ParamsHash())
	if !ok {
		t.Fatal("GetSubscription() not found")
	}

	m.Notify(notification("0xaa", `"0x01"`))
	m.Notify(notification("0xaa", `"0x02"`))

	for i, sub := range []*RawSubscription{a, b} {
		if got := mustTryRecv(t, sub); got != `"0x01"` {
			t.Errorf("handle %d first payload = %s, want %q", i, got, `"0x01"`)
		}
		if got := mustTryRecv(t, sub); got != `"0x02"` {
			t.Errorf("handle %d second payload = %s, want %q", i, got, `"0x02"`)
		}
	}
}

func TestNotifyUnknownServerID(t *testing.T) {
	m := NewManager()
	if m.Notify(notification("0xdead", `"0x01"`)) {
		t.Error("Notify() with unknown server id = true, want false")
	}
}

func TestRemoveSubClosesChannel(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})

	sub := m.Upsert(req, "0xaa")
	m.Notify(notification("0xaa", `"0x01"`))

	m.RemoveSub(req.ParamsHash())
	if got := m.Count(); got != 0 {
		t.Errorf("Count() after removal = %d, want 0", got)
	}
	if m.Notify(notification("0xaa", `"0x02"`)) {
		t.Error("Notify() after removal = true, want false")
	}

	if got := mustTryRecv(t, sub); got != `"0x01"` {
		t.Errorf("buffered payload = %s, want %q", got, `"0x01"`)
	}
	if _, err := sub.TryRecv(); !errors.Is(err, broadcast.ErrClosed) {
		t.Errorf("TryRecv() after drain error = %v, want ErrClosed", err)
	}
}

func TestRemoveSubUnknownIsNoop(t *testing.T) {
	m := NewManager()
	m.Upsert(newTestRequest(t, 1, []string{"newHeads"}), "0xaa")

	m.RemoveSub(eth.Hash{0x01})
	if got := m.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestDropServerIDsKeepsRecords(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})

	sub := m.Upsert(req, "0xaa")
	m.Notify(notification("0xaa", `"0x01"`))

	m.DropServerIDs()

	if got := m.Count(); got != 1 {
		t.Errorf("Count() after drop = %d, want 1", got)
	}
	if _, ok := m.LocalIDFor("0xaa"); ok {
		t.Error("server id survived DropServerIDs")
	}
	if _, ok := m.ServerIDFor(req.ParamsHash()); ok {
		t.Error("local to server mapping survived DropServerIDs")
	}
	if m.Notify(notification("0xaa", `"0x02"`)) {
		t.Error("Notify() with dropped id = true, want false")
	}
	if got := mustTryRecv(t, sub); got != `"0x01"` {
		t.Errorf("pre-disconnect payload = %s, want %q", got, `"0x01"`)
	}

	// Re-establishing under a fresh server id resumes the same channel.
	resumed := m.Upsert(req, "0xbb")
	if !sub.SameChannel(resumed) {
		t.Error("re-established subscription does not share the old channel")
	}
	m.Notify(notification("0xbb", `"0x03"`))
	if got := mustTryRecv(t, sub); got != `"0x03"` {
		t.Errorf("post-reconnect payload = %s, want %q", got, `"0x03"`)
	}
}

func TestGetSubscriptionStartsAtLiveEdge(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})

	m.Upsert(req, "0xaa")
	m.Notify(notification("0xaa", `"0x01"`))

	sub, ok := m.GetSubscription(req.ParamsHash())
	if !ok {
		t.Fatal("GetSubscription() not found")
	}
	if !sub.IsEmpty() {
		t.Error("new handle replayed history")
	}
	m.Notify(notification("0xaa", `"0x02"`))
	if got := mustTryRecv(t, sub); got != `"0x02"` {
		t.Errorf("payload = %s, want %q", got, `"0x02"`)
	}
}

func TestGetSubscriptionUnknown(t *testing.T) {
	m := NewManager()
	if sub, ok := m.GetSubscription(eth.Hash{0x01}); ok || sub != nil {
		t.Errorf("GetSubscription() = %v, %v, want nil, false", sub, ok)
	}
}

func TestRequests(t *testing.T) {
	m := NewManager()
	heads := newTestRequest(t, 1, []string{"newHeads"})
	pending := newTestRequest(t, 2, []string{"newPendingTransactions"})

	m.Upsert(heads, "0xaa")
	m.Upsert(pending, "0xbb")

	reqs := m.Requests()
	if len(reqs) != 2 {
		t.Fatalf("Requests() returned %d entries, want 2", len(reqs))
	}
	seen := map[eth.Hash]bool{}
	for _, req := range reqs {
		seen[req.ParamsHash()] = true
	}
	if !seen[heads.ParamsHash()] || !seen[pending.ParamsHash()] {
		t.Errorf("Requests() params hashes = %v, want both subscriptions", seen)
	}
}

func TestClear(t *testing.T) {
	m := NewManager()
	a := m.Upsert(newTestRequest(t, 1, []string{"newHeads"}), "0xaa")
	b := m.Upsert(newTestRequest(t, 2, []string{"newPendingTransactions"}), "0xbb")

	m.Clear()

	if got := m.Count(); got != 0 {
		t.Errorf("Count() after Clear = %d, want 0", got)
	}
	for i, sub := range []*RawSubscription{a, b} {
		if _, err := sub.TryRecv(); !errors.Is(err, broadcast.ErrClosed) {
			t.Errorf("handle %d TryRecv() error = %v, want ErrClosed", i, err)
		}
	}
}

func TestSlowConsumerLags(t *testing.T) {
	m := NewManager()
	req := newTestRequest(t, 1, []string{"newHeads"})
	sub := m.Upsert(req, "0xaa")

	total := DefaultChannelCapacity + 4
	for i := 0; i < total; i++ {
		m.Notify(notification("0xaa", fmt.Sprintf(`"0x%02x"`, i)))
	}

	_, err := sub.TryRecv()
	var lag *broadcast.LagError
	if !errors.As(err, &lag) {
		t.Fatalf("TryRecv() error = %v, want LagError", err)
	}
	if lag.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", lag.Skipped)
	}
	if got, want := mustTryRecv(t, sub), `"0x04"`; got != want {
		t.Errorf("first payload after lag = %s, want %s", got, want)
	}
}
