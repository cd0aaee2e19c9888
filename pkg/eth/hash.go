package eth

import (
	"encoding/hex"
	"fmt"
)

// HashLength is the byte length of a Hash.
const HashLength = 32

// Hash is a 32-byte value, rendered in JSON as 0x-prefixed hex.
type Hash [HashLength]byte

// BytesToHash copies b into a Hash, left-padding with zeros when b is
// shorter than 32 bytes and keeping the trailing 32 bytes when longer.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// String returns the 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It requires a
// 0x-prefixed string of exactly 64 hex digits.
func (h *Hash) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return fmt.Errorf("hash %q missing 0x prefix", s)
	}
	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != HashLength {
		return fmt.Errorf("hash %q has %d bytes, want %d", s, len(b), HashLength)
	}
	copy(h[:], b)
	return nil
}
