// Package log provides structured protocol capture for ethfeed.
//
// This package defines the Logger interface and Event types for recording
// protocol-level events at multiple layers (transport frames, decoded
// JSON-RPC messages, subscription lifecycle). It is separate from
// operational logging (slog) - protocol capture provides a complete
// machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/ethfeed/watch.eflog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/ethfeed/watch.eflog"),
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw WebSocket frames (FrameEvent)
//   - Wire: decoded JSON-RPC messages (MessageEvent)
//   - Client: subscription lifecycle (SubscriptionEvent), connection
//     state (StateChangeEvent)
//
// Errors at any layer have a dedicated event type.
//
// # File Format
//
// Capture files use CBOR encoding with the .eflog extension. Each event
// is a single CBOR map with integer keys, so files can be streamed and
// appended to safely. Reader iterates a capture file, optionally
// filtered.
package log
