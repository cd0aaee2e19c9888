package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
	"github.com/ethfeed/ethfeed-go/pkg/log"
	"github.com/ethfeed/ethfeed-go/pkg/pubsub"
	"github.com/ethfeed/ethfeed-go/pkg/transport"
)

// Client errors.
var (
	// ErrClosed is returned when operating on a closed client.
	ErrClosed = errors.New("client is closed")

	// ErrNotConnected is returned when no connection is available.
	ErrNotConnected = errors.New("not connected")

	// ErrRequestTimeout is returned when a round trip exceeds the
	// configured request timeout.
	ErrRequestTimeout = errors.New("request timed out")
)

// State represents the client connection state.
type State uint8

const (
	// StateConnected indicates an active connection.
	StateConnected State = iota

	// StateReconnecting indicates the connection was lost and a
	// replacement is being established.
	StateReconnecting

	// StateClosed indicates the client has shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DefaultRequestTimeout bounds subscribe and unsubscribe round trips when
// the config does not say otherwise.
const DefaultRequestTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// RequestTimeout bounds each subscribe/unsubscribe round trip
	// (default: 30s).
	RequestTimeout time.Duration

	// Logger for debug output (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger
}

// Client is a JSON-RPC publish/subscribe client. It owns the connection
// read loop, correlates responses to in-flight requests, and feeds
// notifications into the subscription manager. All methods are safe for
// concurrent use.
type Client struct {
	config   Config
	dialer   transport.Dialer // nil disables reconnect
	endpoint string
	subs     *pubsub.Manager

	logger         *slog.Logger
	protocolLogger log.Logger

	// Request id generator, shared by first subscribes and replays.
	reqID atomic.Uint64

	// Connection state.
	mu    sync.Mutex
	conn  transport.Conn
	state State

	// In-flight requests awaiting their response.
	pendingMu sync.Mutex
	pending   map[uint64]chan *jsonrpc.Response

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// Dial connects through the dialer and returns a running client. The
// dialer is retained: when the connection is lost the client dials once
// more and re-establishes every active subscription.
func Dial(ctx context.Context, dialer transport.Dialer, config Config) (*Client, error) {
	conn, err := dialer.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return newClient(conn, dialer, config), nil
}

// New adopts an existing connection. Without a dialer there is no
// reconnect: when the connection fails, every subscription closes.
func New(conn transport.Conn, config Config) *Client {
	return newClient(conn, nil, config)
}

func newClient(conn transport.Conn, dialer transport.Dialer, config Config) *Client {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	c := &Client{
		config:         config,
		dialer:         dialer,
		subs:           pubsub.NewManager(),
		logger:         config.Logger,
		protocolLogger: config.ProtocolLogger,
		conn:           conn,
		state:          StateConnected,
		pending:        make(map[uint64]chan *jsonrpc.Response),
		closeCh:        make(chan struct{}),
	}
	if e, ok := dialer.(interface{ Endpoint() string }); ok {
		c.endpoint = e.Endpoint()
	}
	c.captureState(conn.ID(), "", StateConnected, "connected")

	c.wg.Add(1)
	go c.readLoop(conn)
	return c
}

// Subscribe issues an eth_subscribe call and installs the result.
//
// Installation deduplicates on the request params: equal params share one
// record and one notification channel, and the newest server id wins. The
// returned handle starts reading at the live edge.
func (c *Client) Subscribe(ctx context.Context, params any) (*pubsub.RawSubscription, error) {
	req, err := jsonrpc.NewRequest(c.reqID.Add(1), jsonrpc.MethodSubscribe, params)
	if err != nil {
		return nil, err
	}

	serverID, err := c.callSubscribe(ctx, req)
	if err != nil {
		return nil, err
	}

	_, existed := c.subs.GetSubscription(req.ParamsHash())
	sub := c.subs.Upsert(req, serverID)

	op := log.SubscriptionInstalled
	if existed {
		op = log.SubscriptionRotated
	}
	c.captureSubscription(c.connID(), op, sub.LocalID(), serverID)
	c.debugLog("subscription installed",
		"local_id", sub.LocalID().String(),
		"server_id", string(serverID))
	return sub, nil
}

// Unsubscribe cancels a subscription. The local record is removed and its
// channel closed even when the wire call fails; the server-side half dies
// with the connection at the latest. Unknown ids are a no-op.
func (c *Client) Unsubscribe(ctx context.Context, localID eth.Hash) error {
	serverID, bound := c.subs.ServerIDFor(localID)
	if _, known := c.subs.GetSubscription(localID); !known {
		return nil
	}

	var wireErr error
	if bound {
		req, err := jsonrpc.NewRequest(c.reqID.Add(1), jsonrpc.MethodUnsubscribe, []jsonrpc.ServerID{serverID})
		if err == nil {
			var resp *jsonrpc.Response
			resp, err = c.roundTrip(ctx, req)
			if err == nil && resp.Error != nil {
				err = resp.Error
			}
		}
		wireErr = err
	}

	c.subs.RemoveSub(localID)
	c.captureSubscription(c.connID(), log.SubscriptionRemoved, localID, serverID)
	c.debugLog("subscription removed", "local_id", localID.String())
	return wireErr
}

// Subscription mints a fresh handle on an existing subscription, reading
// from the live edge.
func (c *Client) Subscription(localID eth.Hash) (*pubsub.RawSubscription, bool) {
	return c.subs.GetSubscription(localID)
}

// SubscriptionCount returns the number of active subscription records.
func (c *Client) SubscriptionCount() int {
	return c.subs.Count()
}

// Requests returns the serialized subscribe request of every active
// subscription. These are the exact frames a reconnect replays.
func (c *Client) Requests() []*jsonrpc.SerializedRequest {
	return c.subs.Requests()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close shuts the client down. In-flight calls fail, every subscription
// channel closes, and consumers drain buffered payloads before observing
// broadcast.ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		prev := c.state
		c.state = StateClosed
		c.mu.Unlock()

		connID := ""
		if conn != nil {
			connID = conn.ID()
			conn.Close()
		}
		if prev != StateClosed {
			c.captureState(connID, prev.String(), StateClosed, "closed")
		}

		c.failPending()
		c.subs.Clear()
		c.wg.Wait()
		c.debugLog("client closed")
	})
	return nil
}

// callSubscribe performs one eth_subscribe round trip and decodes the
// server-assigned subscription id from the result.
func (c *Client) callSubscribe(ctx context.Context, req *jsonrpc.SerializedRequest) (jsonrpc.ServerID, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	var serverID jsonrpc.ServerID
	if err := jsonrpc.Unmarshal(resp.Result, &serverID); err != nil {
		return "", fmt.Errorf("decoding subscription id: %w", err)
	}
	return serverID, nil
}

// roundTrip sends a request frame and waits for the matching response.
func (c *Client) roundTrip(ctx context.Context, req *jsonrpc.SerializedRequest) (*jsonrpc.Response, error) {
	select {
	case <-c.closeCh:
		return nil, ErrClosed
	default:
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	// Buffered so dispatch never blocks delivering under pendingMu.
	respCh := make(chan *jsonrpc.Response, 1)
	c.pendingMu.Lock()
	c.pending[req.ID()] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID())
		c.pendingMu.Unlock()
	}()

	c.captureFrame(conn.ID(), log.DirectionOut, req.Bytes())
	c.captureMessage(conn.ID(), log.DirectionOut, &log.MessageEvent{
		Type:      log.MessageTypeRequest,
		RequestID: req.ID(),
		Method:    req.Method(),
	})
	if err := conn.Send(req.Bytes()); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			// The connection died before the response arrived.
			return nil, ErrNotConnected
		}
		return resp, nil
	case <-time.After(c.config.RequestTimeout):
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeCh:
		return nil, ErrClosed
	}
}

// connID returns the current connection id, or "" when disconnected.
func (c *Client) connID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.conn.ID()
}

func (c *Client) setState(connID string, to State, reason string) {
	c.mu.Lock()
	prev := c.state
	if prev == StateClosed {
		// Close wins over concurrent transitions.
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	if prev != to {
		c.captureState(connID, prev.String(), to, reason)
		c.debugLog("state changed", "from", prev.String(), "to", to.String(), "reason", reason)
	}
}
