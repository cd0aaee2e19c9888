// Package eth provides the minimal Ethereum JSON types consumed by
// subscription feeds.
//
// The quantity types (Uint64, Big) and Hash follow the canonical JSON-RPC
// hex encoding: 0x-prefixed, quantities without leading zeros, hashes as
// fixed-width 32-byte values. Head is the block header shape delivered by a
// newHeads subscription, with helpers for deriving blob fees.
//
// This is deliberately not a full RPC type layer; only the payloads the
// feed tooling consumes are modeled.
package eth
