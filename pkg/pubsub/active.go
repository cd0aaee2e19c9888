package pubsub

import (
	"encoding/json"

	"github.com/ethfeed/ethfeed-go/pkg/broadcast"
	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
)

// DefaultChannelCapacity is the per-subscription notification buffer size.
// A consumer that falls further behind than this loses the overwritten
// payloads and observes a broadcast.LagError on its next receive.
const DefaultChannelCapacity = 16

// activeSubscription pairs the request that opened a subscription with the
// write end of its notification channel. The manager owns exactly one per
// distinct params hash.
type activeSubscription struct {
	// localID is the params hash of request, cached at creation.
	localID eth.Hash

	// request is the canonical serialized request, kept so the
	// subscription can be re-issued verbatim after a reconnect.
	request *jsonrpc.SerializedRequest

	// tx is the write end of the notification channel.
	tx *broadcast.Sender[json.RawMessage]
}

func newActiveSubscription(request *jsonrpc.SerializedRequest) *activeSubscription {
	return &activeSubscription{
		localID: request.ParamsHash(),
		request: request,
		tx:      broadcast.NewSender[json.RawMessage](DefaultChannelCapacity),
	}
}

// subscribe mints a reader handle positioned at the live edge.
func (a *activeSubscription) subscribe() *RawSubscription {
	return &RawSubscription{rx: a.tx.Subscribe(), localID: a.localID}
}

// notify publishes one payload. Never blocks; slow consumers lag instead.
func (a *activeSubscription) notify(result json.RawMessage) {
	a.tx.Send(result)
}

// close ends the channel. Readers drain what is buffered and then observe
// broadcast.ErrClosed.
func (a *activeSubscription) close() {
	a.tx.Close()
}
