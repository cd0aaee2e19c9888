package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// Conn is a bidirectional stream of JSON-RPC frames.
// Implemented by the WebSocket connection and by Pipe ends.
type Conn interface {
	// Send writes one frame. Safe for concurrent use.
	Send(data []byte) error

	// Receive blocks until the next frame arrives or the connection
	// fails. At most one goroutine may call Receive at a time.
	Receive() ([]byte, error)

	// Close tears the connection down. Blocked Receives unblock with
	// ErrConnectionClosed.
	Close() error

	// ID identifies the connection, for logging.
	ID() string
}

// Dialer opens connections to a fixed endpoint. Clients reconnect by
// dialing again.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Compile-time interface satisfaction checks.
var (
	_ Conn   = (*wsConn)(nil)
	_ Conn   = (*pipeConn)(nil)
	_ Dialer = (*WSDialer)(nil)
)
