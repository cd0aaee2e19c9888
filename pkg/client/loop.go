package client

import (
	"context"

	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
	"github.com/ethfeed/ethfeed-go/pkg/log"
	"github.com/ethfeed/ethfeed-go/pkg/transport"
)

// readLoop receives frames until the connection fails, then hands off to
// disconnect handling. One loop runs per connection.
func (c *Client) readLoop(conn transport.Conn) {
	defer c.wg.Done()

	for {
		data, err := conn.Receive()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		c.captureFrame(conn.ID(), log.DirectionIn, data)
		c.dispatch(conn, data)
	}
}

// dispatch classifies one inbound frame and routes it. Malformed frames
// and frames for unknown subscriptions are dropped; a bad frame must not
// take the connection down.
func (c *Client) dispatch(conn transport.Conn, data []byte) {
	var msg jsonrpc.Message
	if err := jsonrpc.Unmarshal(data, &msg); err != nil {
		c.debugLog("dropping unparsable frame", "conn_id", conn.ID(), "error", err)
		c.captureError(conn.ID(), log.LayerWire, err, "decode frame")
		return
	}

	switch {
	case msg.IsNotification():
		notif, err := msg.ParseNotification()
		if err != nil {
			c.debugLog("dropping malformed notification", "conn_id", conn.ID(), "error", err)
			c.captureError(conn.ID(), log.LayerWire, err, "decode notification")
			return
		}
		c.captureMessage(conn.ID(), log.DirectionIn, &log.MessageEvent{
			Type:     log.MessageTypeNotification,
			Method:   msg.Method,
			ServerID: string(notif.Subscription),
		})
		if !c.subs.Notify(notif) {
			// Frames can trail an unsubscribe or an id rotation.
			c.debugLog("notification for unknown subscription",
				"conn_id", conn.ID(),
				"server_id", string(notif.Subscription))
		}

	case msg.IsResponse():
		id, ok := msg.ResponseID()
		if !ok {
			c.debugLog("dropping response with unusable id", "conn_id", conn.ID())
			return
		}
		event := &log.MessageEvent{Type: log.MessageTypeResponse, RequestID: id}
		if msg.Error != nil {
			code := msg.Error.Code
			event.ErrorCode = &code
		}
		c.captureMessage(conn.ID(), log.DirectionIn, event)

		resp := &jsonrpc.Response{
			JSONRPC: msg.JSONRPC,
			ID:      id,
			Result:  msg.Result,
			Error:   msg.Error,
		}
		c.pendingMu.Lock()
		ch, exists := c.pending[id]
		if exists {
			delete(c.pending, id)
			ch <- resp
		}
		c.pendingMu.Unlock()
		if !exists {
			c.debugLog("response with no pending request", "conn_id", conn.ID(), "id", id)
		}

	default:
		// Servers do not issue requests on this protocol.
		c.debugLog("dropping unexpected frame", "conn_id", conn.ID())
	}
}

// handleDisconnect runs when Receive fails. It unbinds every server id,
// fails in-flight calls, and either reconnects once or closes every
// subscription.
func (c *Client) handleDisconnect(conn transport.Conn, cause error) {
	select {
	case <-c.closeCh:
		// Deliberate shutdown; Close owns the teardown.
		return
	default:
	}

	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()

	c.subs.DropServerIDs()
	c.captureSubscription(conn.ID(), log.SubscriptionUnbound, eth.Hash{}, "")
	c.failPending()

	if c.dialer == nil {
		c.debugLog("connection lost, no dialer, shutting down",
			"conn_id", conn.ID(), "error", cause)
		c.setState(conn.ID(), StateClosed, "connection lost")
		c.subs.Clear()
		return
	}

	c.setState(conn.ID(), StateReconnecting, cause.Error())
	c.debugLog("connection lost, reconnecting", "conn_id", conn.ID(), "error", cause)

	if err := c.reconnect(); err != nil {
		c.debugLog("reconnect failed", "error", err)
		c.captureError("", log.LayerClient, err, "reconnect")
		c.setState("", StateClosed, "reconnect failed")
		c.subs.Clear()
	}
}

// reconnect dials a replacement connection and restores every stored
// subscription on it. Retry policy is the dialer's business; the client
// dials exactly once per disconnect.
func (c *Client) reconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.RequestTimeout)
	defer cancel()

	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	select {
	case <-c.closeCh:
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	default:
	}
	c.conn = conn
	c.mu.Unlock()

	c.wg.Add(1)
	go c.readLoop(conn)

	c.restoreSubscriptions(ctx, conn)
	c.setState(conn.ID(), StateConnected, "reconnected")
	return nil
}

// restoreSubscriptions replays every stored subscribe request verbatim and
// rebinds the fresh server ids to the existing records. Requests keep
// their original ids; the id counter only moves forward, so no live
// request can collide with a replay.
func (c *Client) restoreSubscriptions(ctx context.Context, conn transport.Conn) {
	for _, req := range c.subs.Requests() {
		serverID, err := c.callSubscribe(ctx, req)
		if err != nil {
			c.debugLog("re-subscribe failed",
				"local_id", req.ParamsHash().String(), "error", err)
			c.captureError(conn.ID(), log.LayerClient, err, "re-subscribe")
			c.subs.RemoveSub(req.ParamsHash())
			c.captureSubscription(conn.ID(), log.SubscriptionRemoved, req.ParamsHash(), "")
			continue
		}
		c.subs.Upsert(req, serverID)
		c.captureSubscription(conn.ID(), log.SubscriptionRotated, req.ParamsHash(), serverID)
		c.debugLog("subscription re-established",
			"local_id", req.ParamsHash().String(), "server_id", string(serverID))
	}
}

// failPending closes every in-flight response channel, unblocking the
// round trips waiting on them.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()
}
