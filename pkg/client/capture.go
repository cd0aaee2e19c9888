package client

import (
	"errors"
	"time"

	"github.com/ethfeed/ethfeed-go/pkg/eth"
	"github.com/ethfeed/ethfeed-go/pkg/jsonrpc"
	"github.com/ethfeed/ethfeed-go/pkg/log"
)

// frameCaptureLimit caps how many payload bytes a frame capture event
// retains. The true frame size is always recorded.
const frameCaptureLimit = 4096

// debugLog logs a debug message if logging is enabled.
func (c *Client) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) captureFrame(connID string, dir log.Direction, frame []byte) {
	if c.protocolLogger == nil {
		return
	}
	data := frame
	truncated := false
	if len(data) > frameCaptureLimit {
		data = data[:frameCaptureLimit]
		truncated = true
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Endpoint:     c.endpoint,
		Frame: &log.FrameEvent{
			Size:      len(frame),
			Data:      data,
			Truncated: truncated,
		},
	})
}

func (c *Client) captureMessage(connID string, dir log.Direction, msg *log.MessageEvent) {
	if c.protocolLogger == nil {
		return
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Endpoint:     c.endpoint,
		Message:      msg,
	})
}

func (c *Client) captureSubscription(connID string, op log.SubscriptionOp, localID eth.Hash, serverID jsonrpc.ServerID) {
	if c.protocolLogger == nil {
		return
	}
	sub := &log.SubscriptionEvent{Op: op, ServerID: string(serverID)}
	if localID != (eth.Hash{}) {
		sub.LocalID = localID.String()
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerClient,
		Category:     log.CategorySubscription,
		Endpoint:     c.endpoint,
		Subscription: sub,
	})
}

func (c *Client) captureState(connID, oldState string, newState State, reason string) {
	if c.protocolLogger == nil {
		return
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerClient,
		Category:     log.CategoryState,
		Endpoint:     c.endpoint,
		StateChange: &log.StateChangeEvent{
			OldState: oldState,
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

func (c *Client) captureError(connID string, layer log.Layer, err error, context string) {
	if c.protocolLogger == nil {
		return
	}
	data := &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: context,
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.Code
		data.Code = &code
	}
	c.protocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        layer,
		Category:     log.CategoryError,
		Endpoint:     c.endpoint,
		Error:        data,
	})
}
