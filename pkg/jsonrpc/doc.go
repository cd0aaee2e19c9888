// Package jsonrpc implements the JSON-RPC 2.0 message types and codec used
// by the subscription client.
//
// # Frames
//
// Three frame shapes travel over a connection:
//   - Request: client-assigned numeric id, method, serialized params
//   - Response: the id of the request it answers, plus result or error
//   - Notification: no id; method "eth_subscription" with params carrying
//     the server subscription id and one published value
//
// Inbound traffic is classified with Message, a loose union of all frame
// fields, before anything is fully decoded.
//
// # Canonical request bytes
//
// NewRequest serializes a request exactly once and retains the bytes.
// Re-sends reuse them verbatim. ParamsHash, the identity used to
// deduplicate subscriptions, is the Keccak-256 digest of the params
// portion of those bytes. An identity never changes once minted.
//
// # Encoding
//
// All marshaling goes through this package's Marshal/Unmarshal wrappers.
package jsonrpc
