package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Channel errors.
var (
	ErrClosed = errors.New("channel closed")
	ErrEmpty  = errors.New("channel empty")
)

// LagError reports that a receiver fell behind and the writer overwrote
// values it had not yet consumed. The receiver has been repositioned to the
// oldest retained value; the next receive returns that value.
type LagError struct {
	// Skipped is the number of values lost to overwriting.
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("channel lagged, skipped %d values", e.Skipped)
}

// channel is the shared state between one Sender and its Receivers.
type channel[T any] struct {
	mu sync.Mutex

	// Ring storage. Value n lives at buf[n%len(buf)] until overwritten.
	buf []T

	// Total values ever sent; also the next write position.
	pos uint64

	closed bool

	// wake is closed and replaced on every send and on close, releasing
	// all receivers blocked in Recv.
	wake chan struct{}
}

// wakeAllLocked releases every blocked receiver. Caller must hold mu.
func (ch *channel[T]) wakeAllLocked() {
	close(ch.wake)
	ch.wake = make(chan struct{})
}

// Sender is the write end of a channel. It is safe for concurrent use.
type Sender[T any] struct {
	ch *channel[T]
}

// NewSender creates the write end of a channel retaining the most recent
// capacity values. A capacity below 1 is treated as 1.
func NewSender[T any](capacity int) *Sender[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Sender[T]{ch: &channel[T]{
		buf:  make([]T, capacity),
		wake: make(chan struct{}),
	}}
}

// Send appends a value to the channel. It never blocks and never fails:
// when the ring is full the oldest value is overwritten, and receivers that
// had not consumed it observe the loss as a LagError. Sending on a closed
// channel discards the value.
func (s *Sender[T]) Send(v T) {
	ch := s.ch
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.buf[ch.pos%uint64(len(ch.buf))] = v
	ch.pos++
	ch.wakeAllLocked()
	ch.mu.Unlock()
}

// Close closes the channel. Receivers drain the values retained at this
// point and then observe ErrClosed. Close is idempotent.
func (s *Sender[T]) Close() {
	ch := s.ch
	ch.mu.Lock()
	if !ch.closed {
		ch.closed = true
		ch.wakeAllLocked()
	}
	ch.mu.Unlock()
}

// Subscribe creates a new Receiver positioned at the live edge: it observes
// only values sent after this call, never history.
func (s *Sender[T]) Subscribe() *Receiver[T] {
	s.ch.mu.Lock()
	defer s.ch.mu.Unlock()
	return &Receiver[T]{ch: s.ch, next: s.ch.pos}
}

// Receiver is a read end of a channel with its own position. Receivers on
// the same channel consume independently; each sees every value in order.
//
// A single Receiver may be shared between goroutines without data races,
// but concurrent reads split the stream between them. Use Resubscribe to
// give each goroutine its own view.
type Receiver[T any] struct {
	ch *channel[T]

	// next is the position of the next value to consume.
	// Guarded by ch.mu.
	next uint64
}

// Recv returns the next value. It blocks until a value is available, the
// channel is closed (ErrClosed, only after all retained values have been
// consumed), or ctx is canceled (ctx.Err()). A *LagError return means this
// receiver was overrun; it has been repositioned and the next call succeeds.
//
// Pass context.Background() to wait without a cancellation point.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	ch := r.ch
	for {
		ch.mu.Lock()
		v, err := r.recvLocked()
		if err != ErrEmpty {
			ch.mu.Unlock()
			return v, err
		}
		wake := ch.wake
		ch.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wake:
		}
	}
}

// TryRecv returns the next value without blocking. When no value is
// buffered it returns ErrEmpty if the channel is open, ErrClosed if it has
// been closed and drained.
func (r *Receiver[T]) TryRecv() (T, error) {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	return r.recvLocked()
}

// recvLocked pops the next value and advances the cursor.
// Caller must hold ch.mu.
func (r *Receiver[T]) recvLocked() (T, error) {
	var zero T
	ch := r.ch
	capacity := uint64(len(ch.buf))

	if ch.pos-r.next > capacity {
		// Overrun: reposition to the oldest retained value and report
		// how many were lost. The retained values remain readable.
		oldest := ch.pos - capacity
		skipped := oldest - r.next
		r.next = oldest
		return zero, &LagError{Skipped: skipped}
	}

	if r.next == ch.pos {
		if ch.closed {
			return zero, ErrClosed
		}
		return zero, ErrEmpty
	}

	v := ch.buf[r.next%capacity]
	r.next++
	return v, nil
}

// Len returns the number of values sent and not yet consumed by this
// receiver. The count includes values already overwritten; those surface as
// a LagError on the next receive, so Len may transiently exceed the buffer
// capacity.
func (r *Receiver[T]) Len() int {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	return int(r.ch.pos - r.next)
}

// IsEmpty returns true if no values are pending for this receiver.
func (r *Receiver[T]) IsEmpty() bool {
	return r.Len() == 0
}

// SameChannel returns true if both receivers consume from the same channel.
func (r *Receiver[T]) SameChannel(other *Receiver[T]) bool {
	return other != nil && r.ch == other.ch
}

// Resubscribe creates a new Receiver on the same channel positioned at the
// live edge, skipping any values pending on r. r itself is unchanged.
func (r *Receiver[T]) Resubscribe() *Receiver[T] {
	r.ch.mu.Lock()
	defer r.ch.mu.Unlock()
	return &Receiver[T]{ch: r.ch, next: r.ch.pos}
}
