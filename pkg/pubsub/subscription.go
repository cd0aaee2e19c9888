package pubsub

import (
	"context"
	"encoding/json"

	"github.com/ethfeed/ethfeed-go/pkg/broadcast"
	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
)

// RawSubscription is a reader handle yielding the raw notification
// payloads of one subscription.
//
// Receive outcomes are those of the broadcast package: a payload,
// broadcast.ErrClosed once the subscription is removed and the buffer
// drained, or a *broadcast.LagError when this consumer was overrun.
type RawSubscription struct {
	rx      *broadcast.Receiver[json.RawMessage]
	localID eth.Hash
}

// LocalID returns the local id of the subscription feeding this handle.
func (s *RawSubscription) LocalID() eth.Hash { return s.localID }

// Recv returns the next payload, blocking until one arrives, the
// subscription's channel closes, or ctx is canceled.
func (s *RawSubscription) Recv(ctx context.Context) (json.RawMessage, error) {
	return s.rx.Recv(ctx)
}

// TryRecv returns the next payload without blocking. broadcast.ErrEmpty
// means nothing is currently buffered.
func (s *RawSubscription) TryRecv() (json.RawMessage, error) {
	return s.rx.TryRecv()
}

// Len returns the number of payloads this handle has yet to receive.
func (s *RawSubscription) Len() int { return s.rx.Len() }

// IsEmpty reports whether no payloads are pending for this handle.
func (s *RawSubscription) IsEmpty() bool { return s.rx.IsEmpty() }

// Resubscribe returns a new handle on the same channel positioned at the
// live edge, abandoning this handle's backlog.
func (s *RawSubscription) Resubscribe() *RawSubscription {
	return &RawSubscription{rx: s.rx.Resubscribe(), localID: s.localID}
}

// SameChannel reports whether both handles consume from the same
// subscription channel.
func (s *RawSubscription) SameChannel(other *RawSubscription) bool {
	return other != nil && s.rx.SameChannel(other.rx)
}

// SubscriptionItem is one payload from a typed subscription: the decoded
// value when the payload matched T, or the raw bytes when it did not.
type SubscriptionItem[T any] struct {
	Item  T
	Other json.RawMessage
}

// IsItem reports whether the payload decoded as T.
func (it SubscriptionItem[T]) IsItem() bool { return it.Other == nil }

func decodeItem[T any](raw json.RawMessage) SubscriptionItem[T] {
	var item T
	if err := jsonrpc.Unmarshal(raw, &item); err != nil {
		return SubscriptionItem[T]{Other: raw}
	}
	return SubscriptionItem[T]{Item: item}
}

// Subscription is a typed view over a raw handle. It offers three decode
// policies:
//
//   - Recv and TryRecv yield only payloads that decode as T, silently
//     discarding the rest.
//   - RecvAny and TryRecvAny yield every payload, each tagged as decoded
//     item or raw bytes.
//   - RecvResult and TryRecvResult yield every payload and surface decode
//     failures as errors.
type Subscription[T any] struct {
	raw *RawSubscription
}

// Typed wraps a raw handle in a typed view. Both views share one cursor,
// so the raw handle should not be read from afterwards.
func Typed[T any](raw *RawSubscription) *Subscription[T] {
	return &Subscription[T]{raw: raw}
}

// LocalID returns the local id of the subscription feeding this handle.
func (s *Subscription[T]) LocalID() eth.Hash { return s.raw.LocalID() }

// Raw returns the underlying untyped handle.
func (s *Subscription[T]) Raw() *RawSubscription { return s.raw }

// Len returns the number of payloads this handle has yet to receive.
func (s *Subscription[T]) Len() int { return s.raw.Len() }

// IsEmpty reports whether no payloads are pending for this handle.
func (s *Subscription[T]) IsEmpty() bool { return s.raw.IsEmpty() }

// Resubscribe returns a new typed handle on the same channel positioned
// at the live edge.
func (s *Subscription[T]) Resubscribe() *Subscription[T] {
	return Typed[T](s.raw.Resubscribe())
}

// Recv returns the next payload that decodes as T, discarding any that do
// not.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	for {
		item, err := s.RecvAny(ctx)
		if err != nil {
			var zero T
			return zero, err
		}
		if item.IsItem() {
			return item.Item, nil
		}
	}
}

// RecvAny returns the next payload, decoded as T when possible.
func (s *Subscription[T]) RecvAny(ctx context.Context) (SubscriptionItem[T], error) {
	raw, err := s.raw.Recv(ctx)
	if err != nil {
		return SubscriptionItem[T]{}, err
	}
	return decodeItem[T](raw), nil
}

// RecvResult returns the next payload, surfacing a decode failure as the
// error.
func (s *Subscription[T]) RecvResult(ctx context.Context) (T, error) {
	var item T
	raw, err := s.raw.Recv(ctx)
	if err != nil {
		return item, err
	}
	err = jsonrpc.Unmarshal(raw, &item)
	return item, err
}

// TryRecv is the non-blocking form of Recv. broadcast.ErrEmpty means no
// buffered payload decoded as T.
func (s *Subscription[T]) TryRecv() (T, error) {
	for {
		item, err := s.TryRecvAny()
		if err != nil {
			var zero T
			return zero, err
		}
		if item.IsItem() {
			return item.Item, nil
		}
	}
}

// TryRecvAny is the non-blocking form of RecvAny.
func (s *Subscription[T]) TryRecvAny() (SubscriptionItem[T], error) {
	raw, err := s.raw.TryRecv()
	if err != nil {
		return SubscriptionItem[T]{}, err
	}
	return decodeItem[T](raw), nil
}

// TryRecvResult is the non-blocking form of RecvResult.
func (s *Subscription[T]) TryRecvResult() (T, error) {
	var item T
	raw, err := s.raw.TryRecv()
	if err != nil {
		return item, err
	}
	err = jsonrpc.Unmarshal(raw, &item)
	return item, err
}

// SameChannel reports whether two typed handles, possibly of different
// element types, consume from the same subscription channel.
func SameChannel[T, U any](a *Subscription[T], b *Subscription[U]) bool {
	return a != nil && b != nil && a.raw.SameChannel(b.raw)
}
