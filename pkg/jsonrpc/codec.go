package jsonrpc

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// Marshal encodes a value to JSON bytes.
func Marshal(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

// Unmarshal decodes JSON bytes into a value.
func Unmarshal(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// NewEncoder creates a new JSON encoder that writes to w.
func NewEncoder(w io.Writer) *gojson.Encoder {
	return gojson.NewEncoder(w)
}

// NewDecoder creates a new JSON decoder that reads from r.
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}
