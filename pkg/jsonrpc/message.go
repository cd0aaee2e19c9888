package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version tag carried by every frame.
const Version = "2.0"

// Subscription management methods.
const (
	// MethodSubscribe opens a subscription; the response result is the
	// server-assigned subscription id.
	MethodSubscribe = "eth_subscribe"

	// MethodUnsubscribe cancels a subscription by server id.
	MethodUnsubscribe = "eth_unsubscribe"

	// MethodNotification is the server-to-client method whose params carry
	// published values for active subscriptions.
	MethodNotification = "eth_subscription"
)

// ServerID is a server-assigned subscription identifier, preserved exactly
// as it appeared on the wire and compared byte for byte. Servers commonly
// use hex quantities but no format is assumed.
type ServerID string

// Message is a loosely typed JSON-RPC frame used to classify inbound
// traffic before full decoding. Exactly which fields are populated
// determines the frame kind.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsNotification returns true for server-initiated frames: a method with
// no id.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse returns true for frames answering a request: an id with no
// method.
func (m *Message) IsResponse() bool {
	return m.Method == "" && len(m.ID) > 0
}

// ResponseID parses the frame id as the uint64 this client assigns to its
// own requests. ok is false for absent, null, or non-numeric ids.
func (m *Message) ResponseID() (id uint64, ok bool) {
	if len(m.ID) == 0 {
		return 0, false
	}
	if err := Unmarshal(m.ID, &id); err != nil {
		return 0, false
	}
	return id, true
}

// ParseNotification decodes the params of an eth_subscription frame.
func (m *Message) ParseNotification() (*Notification, error) {
	var n Notification
	if err := Unmarshal(m.Params, &n); err != nil {
		return nil, fmt.Errorf("decoding %s params: %w", MethodNotification, err)
	}
	return &n, nil
}

// Notification carries one published subscription value, decoded from the
// params of an eth_subscription frame.
type Notification struct {
	Subscription ServerID        `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// Response is a JSON-RPC response frame. Exactly one of Result and Error
// is populated.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("json-rpc error %d", e.Code)
	}
	return e.Message
}
