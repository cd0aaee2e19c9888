package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", event.Endpoint))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs, slog.String("msg_type", event.Message.Type.String()))
		if event.Message.RequestID != 0 {
			attrs = append(attrs, slog.Uint64("req_id", event.Message.RequestID))
		}
		if event.Message.Method != "" {
			attrs = append(attrs, slog.String("method", event.Message.Method))
		}
		if event.Message.ServerID != "" {
			attrs = append(attrs, slog.String("server_id", event.Message.ServerID))
		}
		if event.Message.ErrorCode != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Message.ErrorCode))
		}
	case event.Subscription != nil:
		attrs = append(attrs, slog.String("op", event.Subscription.Op.String()))
		if event.Subscription.LocalID != "" {
			attrs = append(attrs, slog.String("local_id", event.Subscription.LocalID))
		}
		if event.Subscription.ServerID != "" {
			attrs = append(attrs, slog.String("server_id", event.Subscription.ServerID))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
