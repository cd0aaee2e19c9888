package eth

import (
	"fmt"
	"math/big"
	"strconv"
)

// Uint64 is a uint64 quantity, rendered in JSON as 0x-prefixed hex without
// leading zeros.
type Uint64 uint64

// String returns the 0x-prefixed hex form.
func (v Uint64) String() string {
	return "0x" + strconv.FormatUint(uint64(v), 16)
}

// MarshalText implements encoding.TextMarshaler.
func (v Uint64) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Uint64) UnmarshalText(text []byte) error {
	s, err := trimQuantityPrefix(string(text))
	if err != nil {
		return err
	}
	u, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", text, err)
	}
	*v = Uint64(u)
	return nil
}

// Big is an arbitrary-width quantity, rendered in JSON as 0x-prefixed hex
// without leading zeros.
type Big big.Int

// NewBig wraps x without copying it.
func NewBig(x *big.Int) *Big {
	return (*Big)(x)
}

// ToInt returns the value as a *big.Int sharing the same storage.
func (b *Big) ToInt() *big.Int {
	return (*big.Int)(b)
}

// String returns the 0x-prefixed hex form.
func (b *Big) String() string {
	return "0x" + b.ToInt().Text(16)
}

// MarshalText implements encoding.TextMarshaler.
func (b *Big) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Big) UnmarshalText(text []byte) error {
	s, err := trimQuantityPrefix(string(text))
	if err != nil {
		return err
	}
	i, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return fmt.Errorf("invalid quantity %q", text)
	}
	*b = Big(*i)
	return nil
}

// trimQuantityPrefix strips the mandatory 0x prefix from a hex quantity.
func trimQuantityPrefix(s string) (string, error) {
	if len(s) < 3 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return "", fmt.Errorf("quantity %q must be 0x-prefixed hex", s)
	}
	return s[2:], nil
}
