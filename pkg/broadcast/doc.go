// Package broadcast implements a single-writer, multi-reader value channel
// backed by a fixed-size ring buffer.
//
// A Sender owns the buffer and never blocks: when the ring is full the
// oldest value is overwritten. Each Receiver tracks its own position and
// observes every value sent after it subscribed, in order. A receiver that
// falls more than the buffer capacity behind loses the overwritten values
// and is told how many via LagError.
//
// # Reading
//
// Recv blocks until a value arrives, the channel closes, or the context is
// canceled. Pass context.Background() for an unbounded wait. TryRecv never
// blocks and returns ErrEmpty when no value is buffered.
//
// # Closing
//
// Closing the Sender is terminal. Receivers drain whatever values were
// retained at close time and then observe ErrClosed. Values sent after
// Close are discarded.
//
// # Abandonment
//
// Receivers hold no resources beyond a cursor. Dropping one requires no
// cleanup and never affects the Sender or other receivers.
package broadcast
