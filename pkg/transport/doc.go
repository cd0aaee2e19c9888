// Package transport carries JSON-RPC frames over WebSocket connections.
//
// The transport layer handles:
//   - WebSocket dial and upgrade, plain or TLS
//   - One JSON-RPC frame per WebSocket text message
//   - Keep-alive ping/pong for connection liveness
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│       JSON-RPC frames          │
//	├────────────────────────────────┤
//	│    WebSocket text messages     │
//	├────────────────────────────────┤
//	│        HTTP/1.1 upgrade        │
//	├────────────────────────────────┤
//	│         TLS (optional)         │
//	├────────────────────────────────┤
//	│             TCP                │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// Connection liveness is monitored with WebSocket ping/pong control
// frames:
//   - Ping interval: 30 seconds
//   - Pong timeout: 5 seconds
//
// A connection whose pongs stop arriving fails its next Receive once the
// read deadline lapses.
//
// Pipe returns an in-memory connection pair with the same semantics, for
// tests that need a transport without a network.
package transport
