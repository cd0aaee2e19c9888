package transport

import "sync"

// pipeBufferSize is the per-direction frame queue of a Pipe.
const pipeBufferSize = 64

// Pipe returns two connected in-memory Conns. Frames sent on one end
// arrive at the other. Closing either end closes both; a Receive still
// drains frames that were already in flight before reporting
// ErrConnectionClosed.
func Pipe() (Conn, Conn) {
	state := &pipeState{done: make(chan struct{})}
	ab := make(chan []byte, pipeBufferSize)
	ba := make(chan []byte, pipeBufferSize)
	a := &pipeConn{id: "pipe-a", out: ab, in: ba, state: state}
	b := &pipeConn{id: "pipe-b", out: ba, in: ab, state: state}
	return a, b
}

// pipeState is shared by both ends so one Close kills the pair.
type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeConn struct {
	id    string
	out   chan<- []byte
	in    <-chan []byte
	state *pipeState
}

func (c *pipeConn) ID() string {
	return c.id
}

func (c *pipeConn) Send(data []byte) error {
	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case <-c.state.done:
		return ErrConnectionClosed
	case c.out <- msg:
		return nil
	}
}

func (c *pipeConn) Receive() ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	default:
	}

	select {
	case <-c.state.done:
		return nil, ErrConnectionClosed
	case data := <-c.in:
		return data, nil
	}
}

func (c *pipeConn) Close() error {
	c.state.once.Do(func() {
		close(c.state.done)
	})
	return nil
}
