package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/ethfeed/ethfeed-go/pkg/eth"
)

// Request is a JSON-RPC request frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// SerializedRequest pairs a request with its canonical serialized form.
//
// The request is marshaled exactly once, at construction. Whatever bytes
// that marshal produced are the request's canonical form for its entire
// lifetime: re-sends reuse them verbatim, and the params hash derived from
// them never drifts.
type SerializedRequest struct {
	request Request
	raw     []byte
	hash    eth.Hash
}

// NewRequest builds a request and serializes it immediately. params is
// marshaled as given and becomes part of the canonical bytes; pass nil for
// methods without parameters.
func NewRequest(id uint64, method string, params any) (*SerializedRequest, error) {
	if method == "" {
		return nil, errors.New("method must not be empty")
	}

	req := Request{JSONRPC: Version, ID: id, Method: method}
	if params != nil {
		p, err := Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshaling params: %w", err)
		}
		req.Params = p
	}

	raw, err := Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	return &SerializedRequest{
		request: req,
		raw:     raw,
		hash:    keccak256(paramsOrNull(req.Params)),
	}, nil
}

// ID returns the request id.
func (r *SerializedRequest) ID() uint64 {
	return r.request.ID
}

// Method returns the request method.
func (r *SerializedRequest) Method() string {
	return r.request.Method
}

// Params returns the serialized params, nil when the request has none.
// The returned slice is shared; callers must not modify it.
func (r *SerializedRequest) Params() json.RawMessage {
	return r.request.Params
}

// Request returns the decoded form of the request. The Params field shares
// storage with the canonical bytes.
func (r *SerializedRequest) Request() Request {
	return r.request
}

// Bytes returns the canonical frame bytes, ready to send. The returned
// slice is shared; callers must not modify it.
func (r *SerializedRequest) Bytes() []byte {
	return r.raw
}

// ParamsHash returns the Keccak-256 digest of the serialized params, the
// content-derived identity of this request. Requests with byte-identical
// params share a hash regardless of their ids; absent params hash as the
// literal null.
func (r *SerializedRequest) ParamsHash() eth.Hash {
	return r.hash
}

// paramsOrNull substitutes the literal null for absent params so that
// parameterless requests still have a well-defined hash input.
func paramsOrNull(params []byte) []byte {
	if len(params) == 0 {
		return []byte("null")
	}
	return params
}

// keccak256 hashes b with legacy Keccak-256, the Ethereum variant that
// predates the finalized SHA-3 padding.
func keccak256(b []byte) eth.Hash {
	d := sha3.NewLegacyKeccak256()
	d.Write(b)
	var h eth.Hash
	d.Sum(h[:0])
	return h
}
