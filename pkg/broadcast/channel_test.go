package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSendRecvOrder(t *testing.T) {
	tx := NewSender[int](8)
	rx := tx.Subscribe()

	for i := 0; i < 5; i++ {
		tx.Send(i)
	}

	for want := 0; want < 5; want++ {
		got, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv() error = %v", err)
		}
		if got != want {
			t.Errorf("TryRecv() = %d, want %d", got, want)
		}
	}

	if _, err := rx.TryRecv(); err != ErrEmpty {
		t.Errorf("TryRecv() after drain error = %v, want ErrEmpty", err)
	}
}

func TestTryRecvEmpty(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	if _, err := rx.TryRecv(); err != ErrEmpty {
		t.Errorf("TryRecv() error = %v, want ErrEmpty", err)
	}
}

func TestRecvBlocksUntilSend(t *testing.T) {
	tx := NewSender[string](4)
	rx := tx.Subscribe()

	go func() {
		time.Sleep(20 * time.Millisecond)
		tx.Send("hello")
	}()

	got, err := rx.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("Recv() = %q, want %q", got, "hello")
	}
}

func TestRecvContextCanceled(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := rx.Recv(ctx)
	if err != context.Canceled {
		t.Errorf("Recv() error = %v, want context.Canceled", err)
	}

	// The receiver must remain usable after a canceled wait.
	tx.Send(7)
	got, err := rx.TryRecv()
	if err != nil || got != 7 {
		t.Errorf("TryRecv() after cancel = (%d, %v), want (7, nil)", got, err)
	}
}

func TestCloseDrainsThenReportsClosed(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	tx.Send(1)
	tx.Send(2)
	tx.Close()

	for want := 1; want <= 2; want++ {
		got, err := rx.Recv(context.Background())
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		if got != want {
			t.Errorf("Recv() = %d, want %d", got, want)
		}
	}

	if _, err := rx.Recv(context.Background()); err != ErrClosed {
		t.Errorf("Recv() after drain error = %v, want ErrClosed", err)
	}
	// Terminal: stays closed.
	if _, err := rx.TryRecv(); err != ErrClosed {
		t.Errorf("TryRecv() after close error = %v, want ErrClosed", err)
	}
}

func TestSendAfterCloseDiscarded(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	tx.Close()
	tx.Send(42)

	if _, err := rx.TryRecv(); err != ErrClosed {
		t.Errorf("TryRecv() error = %v, want ErrClosed", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	tx.Close()
	tx.Close()

	if _, err := rx.TryRecv(); err != ErrClosed {
		t.Errorf("TryRecv() error = %v, want ErrClosed", err)
	}
}

func TestLagRepositionsToOldestRetained(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	// 10 values through a 4-slot ring: 0..5 are overwritten.
	for i := 0; i < 10; i++ {
		tx.Send(i)
	}

	_, err := rx.TryRecv()
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("TryRecv() error = %v, want *LagError", err)
	}
	if lag.Skipped != 6 {
		t.Errorf("Skipped = %d, want 6", lag.Skipped)
	}

	// After repositioning the retained values arrive in order.
	for want := 6; want < 10; want++ {
		got, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv() error = %v", err)
		}
		if got != want {
			t.Errorf("TryRecv() = %d, want %d", got, want)
		}
	}

	if _, err := rx.TryRecv(); err != ErrEmpty {
		t.Errorf("TryRecv() after drain error = %v, want ErrEmpty", err)
	}
}

func TestLagBoundary(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	// Exactly capacity values: no loss.
	for i := 0; i < 4; i++ {
		tx.Send(i)
	}
	for want := 0; want < 4; want++ {
		got, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv() error = %v", err)
		}
		if got != want {
			t.Errorf("TryRecv() = %d, want %d", got, want)
		}
	}

	// One past capacity: exactly one value lost.
	for i := 0; i < 5; i++ {
		tx.Send(100 + i)
	}
	_, err := rx.TryRecv()
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("TryRecv() error = %v, want *LagError", err)
	}
	if lag.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", lag.Skipped)
	}
	if got, _ := rx.TryRecv(); got != 101 {
		t.Errorf("TryRecv() after lag = %d, want 101", got)
	}
}

func TestLagAfterCloseStillDrains(t *testing.T) {
	tx := NewSender[int](2)
	rx := tx.Subscribe()

	for i := 0; i < 5; i++ {
		tx.Send(i)
	}
	tx.Close()

	// Lag is reported first, then the values retained at close, then closed.
	_, err := rx.TryRecv()
	var lag *LagError
	if !errors.As(err, &lag) {
		t.Fatalf("TryRecv() error = %v, want *LagError", err)
	}
	if lag.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", lag.Skipped)
	}
	for want := 3; want < 5; want++ {
		got, err := rx.TryRecv()
		if err != nil {
			t.Fatalf("TryRecv() error = %v", err)
		}
		if got != want {
			t.Errorf("TryRecv() = %d, want %d", got, want)
		}
	}
	if _, err := rx.TryRecv(); err != ErrClosed {
		t.Errorf("TryRecv() error = %v, want ErrClosed", err)
	}
}

func TestSubscribeSkipsHistory(t *testing.T) {
	tx := NewSender[int](8)

	tx.Send(1)
	tx.Send(2)

	rx := tx.Subscribe()
	if _, err := rx.TryRecv(); err != ErrEmpty {
		t.Errorf("TryRecv() on fresh receiver error = %v, want ErrEmpty", err)
	}

	tx.Send(3)
	got, err := rx.TryRecv()
	if err != nil || got != 3 {
		t.Errorf("TryRecv() = (%d, %v), want (3, nil)", got, err)
	}
}

func TestResubscribeSkipsPending(t *testing.T) {
	tx := NewSender[int](8)
	rx := tx.Subscribe()

	tx.Send(1)
	tx.Send(2)

	fresh := rx.Resubscribe()
	if _, err := fresh.TryRecv(); err != ErrEmpty {
		t.Errorf("TryRecv() on resubscribed receiver error = %v, want ErrEmpty", err)
	}

	// The original receiver keeps its backlog.
	got, err := rx.TryRecv()
	if err != nil || got != 1 {
		t.Errorf("TryRecv() on original = (%d, %v), want (1, nil)", got, err)
	}

	if !rx.SameChannel(fresh) {
		t.Error("SameChannel() = false for resubscribed receiver, want true")
	}
}

func TestIndependentCursors(t *testing.T) {
	tx := NewSender[int](8)
	a := tx.Subscribe()
	b := tx.Subscribe()

	tx.Send(1)
	tx.Send(2)

	// a consumes both; b is unaffected.
	a.TryRecv()
	a.TryRecv()

	if b.Len() != 2 {
		t.Errorf("b.Len() = %d, want 2", b.Len())
	}
	got, err := b.TryRecv()
	if err != nil || got != 1 {
		t.Errorf("b.TryRecv() = (%d, %v), want (1, nil)", got, err)
	}
}

func TestSameChannel(t *testing.T) {
	tx := NewSender[int](4)
	other := NewSender[int](4)

	a := tx.Subscribe()
	b := tx.Subscribe()
	c := other.Subscribe()

	if !a.SameChannel(b) {
		t.Error("SameChannel() = false for receivers of one sender, want true")
	}
	if a.SameChannel(c) {
		t.Error("SameChannel() = true for receivers of different senders, want false")
	}
	if a.SameChannel(nil) {
		t.Error("SameChannel(nil) = true, want false")
	}
}

func TestLenAndIsEmpty(t *testing.T) {
	tx := NewSender[int](2)
	rx := tx.Subscribe()

	if !rx.IsEmpty() {
		t.Error("IsEmpty() = false on fresh receiver, want true")
	}

	tx.Send(1)
	tx.Send(2)
	if rx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rx.Len())
	}

	rx.TryRecv()
	if rx.Len() != 1 {
		t.Errorf("Len() = %d after one receive, want 1", rx.Len())
	}

	// Len counts overwritten-but-unconsumed values too.
	for i := 0; i < 4; i++ {
		tx.Send(10 + i)
	}
	if rx.Len() != 5 {
		t.Errorf("Len() = %d after overrun, want 5", rx.Len())
	}
}

func TestCloseWakesBlockedRecv(t *testing.T) {
	tx := NewSender[int](4)
	rx := tx.Subscribe()

	done := make(chan error, 1)
	go func() {
		_, err := rx.Recv(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tx.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Errorf("Recv() error = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Recv() still blocked after Close")
	}
}

func TestZeroCapacityClamped(t *testing.T) {
	tx := NewSender[int](0)
	rx := tx.Subscribe()

	tx.Send(1)
	got, err := rx.TryRecv()
	if err != nil || got != 1 {
		t.Errorf("TryRecv() = (%d, %v), want (1, nil)", got, err)
	}
}

func TestConcurrentReceivers(t *testing.T) {
	const (
		total     = 1000
		receivers = 4
	)

	tx := NewSender[int](total) // large enough that nobody lags
	var wg sync.WaitGroup

	for i := 0; i < receivers; i++ {
		rx := tx.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := 0
			for {
				v, err := rx.Recv(context.Background())
				if err == ErrClosed {
					break
				}
				if err != nil {
					t.Errorf("Recv() error = %v", err)
					return
				}
				if v != next {
					t.Errorf("Recv() = %d, want %d", v, next)
					return
				}
				next++
			}
			if next != total {
				t.Errorf("received %d values, want %d", next, total)
			}
		}()
	}

	for i := 0; i < total; i++ {
		tx.Send(i)
	}
	tx.Close()

	wg.Wait()
}

func TestConcurrentLaggedReceiver(t *testing.T) {
	const total = 500

	tx := NewSender[int](8)
	rx := tx.Subscribe()

	done := make(chan struct{})
	var received, skipped uint64
	go func() {
		defer close(done)
		last := -1
		for {
			v, err := rx.Recv(context.Background())
			if err == ErrClosed {
				return
			}
			var lag *LagError
			if errors.As(err, &lag) {
				skipped += lag.Skipped
				continue
			}
			if err != nil {
				t.Errorf("Recv() error = %v", err)
				return
			}
			if v <= last {
				t.Errorf("out of order: got %d after %d", v, last)
				return
			}
			last = v
			received++
		}
	}()

	for i := 0; i < total; i++ {
		tx.Send(i)
	}
	tx.Close()
	<-done

	if received+skipped != total {
		t.Errorf("received(%d) + skipped(%d) = %d, want %d",
			received, skipped, received+skipped, total)
	}
}
