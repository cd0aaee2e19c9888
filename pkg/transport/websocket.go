package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WebSocket defaults.
const (
	// DefaultHandshakeTimeout bounds the HTTP upgrade handshake.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultWriteTimeout bounds each outgoing frame write.
	DefaultWriteTimeout = 10 * time.Second

	// DefaultMaxMessageSize caps incoming frames (32MB). Subscription
	// payloads such as full log batches can be large.
	DefaultMaxMessageSize = 32 << 20
)

// Keep-alive constants.
const (
	// DefaultPingInterval is the default interval between pings.
	DefaultPingInterval = 30 * time.Second

	// DefaultPongTimeout is the default grace period for the pong after
	// each ping.
	DefaultPongTimeout = 5 * time.Second
)

// KeepAliveConfig configures WebSocket ping/pong liveness probing.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings.
	PingInterval time.Duration

	// PongTimeout is how long past a ping the pong may arrive before the
	// connection is considered dead.
	PongTimeout time.Duration

	// Disabled turns liveness probing off.
	Disabled bool
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval: DefaultPingInterval,
		PongTimeout:  DefaultPongTimeout,
	}
}

// readWait returns how long the read side may go without proof of life.
func (c KeepAliveConfig) readWait() time.Duration {
	return c.PingInterval + c.PongTimeout
}

// WSConfig configures a WebSocket dialer.
type WSConfig struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header is sent with the HTTP upgrade request. Optional.
	Header http.Header

	// TLSConfig is used for wss endpoints. Optional.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds the upgrade handshake (default: 10s).
	HandshakeTimeout time.Duration

	// WriteTimeout bounds each outgoing frame write (default: 10s).
	WriteTimeout time.Duration

	// MaxMessageSize caps incoming frames (default: 32MB).
	MaxMessageSize int64

	// KeepAlive configures liveness probing.
	KeepAlive KeepAliveConfig
}

// WSDialer dials a fixed WebSocket endpoint.
type WSDialer struct {
	config WSConfig
}

// NewWSDialer validates the endpoint and returns a dialer for it.
func NewWSDialer(config WSConfig) (*WSDialer, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q, want ws or wss", u.Scheme)
	}

	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.KeepAlive.PingInterval == 0 {
		config.KeepAlive.PingInterval = DefaultPingInterval
	}
	if config.KeepAlive.PongTimeout == 0 {
		config.KeepAlive.PongTimeout = DefaultPongTimeout
	}

	return &WSDialer{config: config}, nil
}

// Endpoint returns the URL this dialer connects to.
func (d *WSDialer) Endpoint() string {
	return d.config.URL
}

// Dial opens a connection to the configured endpoint.
func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.config.HandshakeTimeout,
		TLSClientConfig:  d.config.TLSConfig,
	}

	conn, resp, err := dialer.DialContext(ctx, d.config.URL, d.config.Header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("dial %s: %w (HTTP %d)", d.config.URL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", d.config.URL, err)
	}
	conn.SetReadLimit(d.config.MaxMessageSize)

	c := &wsConn{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: d.config.WriteTimeout,
		closeCh:      make(chan struct{}),
	}

	if !d.config.KeepAlive.Disabled {
		wait := d.config.KeepAlive.readWait()
		conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
		go c.pingLoop(d.config.KeepAlive.PingInterval, d.config.KeepAlive.PongTimeout)
	}

	return c, nil
}

// wsConn adapts a gorilla websocket connection to the Conn interface.
type wsConn struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
}

// ID returns the connection identifier.
func (c *wsConn) ID() string {
	return c.id
}

// Send writes one frame as a WebSocket text message.
func (c *wsConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until the next frame arrives or the connection fails.
func (c *wsConn) Receive() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		select {
		case <-c.closeCh:
			return nil, ErrConnectionClosed
		default:
		}
		return nil, err
	}
	return data, nil
}

// Close sends a close frame best effort and tears the connection down.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		err = c.conn.Close()
	})
	return err
}

// pingLoop probes the peer until the connection closes. Control frames
// may be written concurrently with Send, so no write lock is taken.
func (c *wsConn) pingLoop(interval, timeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCh:
			return
		case <-ticker.C:
			deadline := time.Now().Add(timeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
