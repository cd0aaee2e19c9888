package pubsub

import (
	"sync"

	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
)

// Manager tracks every active subscription on a connection together with
// the bidirectional mapping between local and server identifiers.
//
// All methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	// subs holds the subscription records, keyed by local id.
	subs map[eth.Hash]*activeSubscription

	// serverByLocal and localByServer are kept in lockstep: every
	// (local, server) pair appears in each map exactly once.
	serverByLocal map[eth.Hash]jsonrpc.ServerID
	localByServer map[jsonrpc.ServerID]eth.Hash
}

// NewManager creates an empty subscription manager.
func NewManager() *Manager {
	return &Manager{
		subs:          make(map[eth.Hash]*activeSubscription),
		serverByLocal: make(map[eth.Hash]jsonrpc.ServerID),
		localByServer: make(map[jsonrpc.ServerID]eth.Hash),
	}
}

// Upsert installs the subscription opened by req under serverID and
// returns a fresh reader handle positioned at the live edge.
//
// When a record with the same params hash already exists, whether from a
// duplicate subscribe or a re-subscribe after reconnect, no new record or
// channel is created: the existing record adopts the new server id and all
// handles for those params keep consuming from the one channel.
func (m *Manager) Upsert(req *jsonrpc.SerializedRequest, serverID jsonrpc.ServerID) *RawSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	localID := req.ParamsHash()
	if _, ok := m.subs[localID]; ok {
		m.rotateServerIDLocked(localID, serverID)
		sub := m.subscribeLocked(localID)
		if sub == nil {
			panic("pubsub: record missing after existence check")
		}
		return sub
	}

	active := newActiveSubscription(req)
	m.subs[active.localID] = active
	m.rotateServerIDLocked(active.localID, serverID)
	return active.subscribe()
}

// rotateServerIDLocked points localID at serverID, evicting any pair that
// collides on either side so the mapping stays one-to-one. Caller must
// hold mu.
func (m *Manager) rotateServerIDLocked(localID eth.Hash, serverID jsonrpc.ServerID) {
	if old, ok := m.serverByLocal[localID]; ok {
		delete(m.localByServer, old)
	}
	if old, ok := m.localByServer[serverID]; ok {
		delete(m.serverByLocal, old)
	}
	m.serverByLocal[localID] = serverID
	m.localByServer[serverID] = localID
}

// LocalIDFor resolves a server id to the local id it currently aliases.
func (m *Manager) LocalIDFor(serverID jsonrpc.ServerID) (eth.Hash, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	localID, ok := m.localByServer[serverID]
	return localID, ok
}

// ServerIDFor resolves a local id to its current server id. After a
// disconnect there is none until the subscription is re-established.
func (m *Manager) ServerIDFor(localID eth.Hash) (jsonrpc.ServerID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	serverID, ok := m.serverByLocal[localID]
	return serverID, ok
}

// Notify routes one notification to the channel of the subscription its
// server id currently aliases, and reports whether the id was known.
// Unknown ids belong to subscriptions that were since removed or rotated;
// their frames are dropped.
//
// Delivery is non-blocking and best effort: a payload published to a
// channel nobody reads is simply overwritten once the buffer wraps.
func (m *Manager) Notify(n *jsonrpc.Notification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	localID, ok := m.localByServer[n.Subscription]
	if !ok {
		return false
	}
	active, ok := m.subs[localID]
	if !ok {
		panic("pubsub: no record for mapped server id")
	}
	active.notify(n.Result)
	return true
}

// RemoveSub removes a subscription and closes its channel. Consumers drain
// whatever is buffered and then observe broadcast.ErrClosed. Removing an
// unknown id is a no-op.
func (m *Manager) RemoveSub(localID eth.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active, ok := m.subs[localID]
	if !ok {
		return
	}
	delete(m.subs, localID)
	if serverID, ok := m.serverByLocal[localID]; ok {
		delete(m.serverByLocal, localID)
		delete(m.localByServer, serverID)
	}
	active.close()
}

// DropServerIDs forgets every server id mapping while keeping all records
// and their channels intact. Server ids are only meaningful for a single
// connection, so the client calls this on disconnect; consumers and
// buffered payloads survive until Upsert rebinds fresh ids.
func (m *Manager) DropServerIDs() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverByLocal = make(map[eth.Hash]jsonrpc.ServerID)
	m.localByServer = make(map[jsonrpc.ServerID]eth.Hash)
}

// GetSubscription mints a new reader handle for an existing subscription,
// positioned at the live edge. The second return is false when no record
// with that local id exists.
func (m *Manager) GetSubscription(localID eth.Hash) (*RawSubscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := m.subscribeLocked(localID)
	return sub, sub != nil
}

// subscribeLocked mints a handle, nil when the id is unknown. Caller must
// hold mu.
func (m *Manager) subscribeLocked(localID eth.Hash) *RawSubscription {
	active, ok := m.subs[localID]
	if !ok {
		return nil
	}
	return active.subscribe()
}

// Count returns the number of active subscription records.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Requests returns the canonical serialized request of every active
// subscription, in no particular order. The client re-issues these after
// a reconnect.
func (m *Manager) Requests() []*jsonrpc.SerializedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	reqs := make([]*jsonrpc.SerializedRequest, 0, len(m.subs))
	for _, active := range m.subs {
		reqs = append(reqs, active.request)
	}
	return reqs
}

// Clear removes every subscription and closes all channels. Used on final
// shutdown, when no reconnect will follow.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for localID, active := range m.subs {
		delete(m.subs, localID)
		active.close()
	}
	m.serverByLocal = make(map[eth.Hash]jsonrpc.ServerID)
	m.localByServer = make(map[jsonrpc.ServerID]eth.Hash)
}
