package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection the event belongs to.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Endpoint is the dialed URL.
	Endpoint string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (exactly one is set).
	Frame        *FrameEvent        `cbor:"10,keyasint,omitempty"` // Transport layer
	Message      *MessageEvent      `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	Subscription *SubscriptionEvent `cbor:"12,keyasint,omitempty"` // Subscription lifecycle
	StateChange  *StateChangeEvent  `cbor:"13,keyasint,omitempty"` // Connection state
	Error        *ErrorEventData    `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the WebSocket framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded JSON-RPC).
	LayerWire Layer = 1
	// LayerClient is the subscription/client layer.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a JSON-RPC message (request/response/notification).
	CategoryMessage Category = 0
	// CategorySubscription indicates a subscription lifecycle event.
	CategorySubscription Category = 1
	// CategoryState indicates a connection state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategorySubscription:
		return "SUBSCRIPTION"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one raw frame at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was cut short.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded JSON-RPC message at the wire layer.
type MessageEvent struct {
	// Type distinguishes request/response/notification.
	Type MessageType `cbor:"1,keyasint"`

	// RequestID correlates request/response pairs (0 for notifications).
	RequestID uint64 `cbor:"2,keyasint,omitempty"`

	// Method is the request method. Empty for responses.
	Method string `cbor:"3,keyasint,omitempty"`

	// ServerID is the subscription a notification belongs to.
	ServerID string `cbor:"4,keyasint,omitempty"`

	// ErrorCode is set for error responses.
	ErrorCode *int `cbor:"5,keyasint,omitempty"`
}

// MessageType distinguishes request/response/notification.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a response message.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification indicates a notification message.
	MessageTypeNotification MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionEvent captures subscription lifecycle transitions.
type SubscriptionEvent struct {
	// Op is the lifecycle transition.
	Op SubscriptionOp `cbor:"1,keyasint"`

	// LocalID is the content-derived subscription id (hex).
	LocalID string `cbor:"2,keyasint,omitempty"`

	// ServerID is the server-assigned id, when one is bound.
	ServerID string `cbor:"3,keyasint,omitempty"`
}

// SubscriptionOp indicates the lifecycle transition of a subscription.
type SubscriptionOp uint8

const (
	// SubscriptionInstalled indicates a new subscription record.
	SubscriptionInstalled SubscriptionOp = 0
	// SubscriptionRotated indicates an existing record adopted a new server id.
	SubscriptionRotated SubscriptionOp = 1
	// SubscriptionRemoved indicates a record was removed and its channel closed.
	SubscriptionRemoved SubscriptionOp = 2
	// SubscriptionUnbound indicates server ids were dropped on disconnect.
	SubscriptionUnbound SubscriptionOp = 3
)

// String returns the lifecycle transition name.
func (o SubscriptionOp) String() string {
	switch o {
	case SubscriptionInstalled:
		return "INSTALLED"
	case SubscriptionRotated:
		return "ROTATED"
	case SubscriptionRemoved:
		return "REMOVED"
	case SubscriptionUnbound:
		return "UNBOUND"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the JSON-RPC error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
