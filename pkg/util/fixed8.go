package util

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/noriachain/neonode/pkg/io"
)

// decimals is the number of fractional digits a Fixed8 represents.
const decimals = 100000000

// Fixed8 is a signed 64-bit integer scaled by 10^8, used throughout Neo for
// GAS/NEO amounts and fees so that monetary math never touches floats.
type Fixed8 int64

// Fixed8FromInt64 builds a Fixed8 representing the integral value val.
func Fixed8FromInt64(val int64) Fixed8 {
	return Fixed8(val * decimals)
}

// Fixed8FromFloat builds a Fixed8 from a float64, rounding to the nearest
// representable value. Only used at configuration-parsing boundaries; never
// in consensus-critical arithmetic.
func Fixed8FromFloat(val float64) Fixed8 {
	return Fixed8(math.Round(val * decimals))
}

// Fixed8FromString parses a decimal string such as "1.5" into a Fixed8.
func Fixed8FromString(s string) (Fixed8, error) {
	parts := strings.SplitN(s, ".", 2)
	intPart, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, err
	}
	neg := strings.HasPrefix(s, "-")
	val := intPart * decimals
	if len(parts) == 2 {
		frac := parts[1]
		for len(frac) < 8 {
			frac += "0"
		}
		frac = frac[:8]
		fracVal, err := strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, err
		}
		if neg {
			val -= fracVal
		} else {
			val += fracVal
		}
	}
	return Fixed8(val), nil
}

// Int64Value truncates the fractional part and returns the integral value.
func (f Fixed8) Int64Value() int64 {
	return int64(f) / decimals
}

// Add returns f+other.
func (f Fixed8) Add(other Fixed8) Fixed8 { return f + other }

// Sub returns f-other.
func (f Fixed8) Sub(other Fixed8) Fixed8 { return f - other }

// LessThan reports whether f < other.
func (f Fixed8) LessThan(other Fixed8) bool { return f < other }

// GreaterThan reports whether f > other.
func (f Fixed8) GreaterThan(other Fixed8) bool { return f > other }

// String renders f as a decimal string with up to 8 fractional digits,
// trimmed of trailing zeros (but keeping at least one integral digit).
func (f Fixed8) String() string {
	buf := strconv.FormatInt(int64(f), 10)
	neg := false
	if buf[0] == '-' {
		neg = true
		buf = buf[1:]
	}
	for len(buf) <= 8 {
		buf = "0" + buf
	}
	intPart := buf[:len(buf)-8]
	fracPart := strings.TrimRight(buf[len(buf)-8:], "0")
	s := intPart
	if fracPart != "" {
		s += "." + fracPart
	}
	if neg {
		s = "-" + s
	}
	return s
}

// EncodeBinary implements io.Serializable.
func (f Fixed8) EncodeBinary(w *io.BinWriter) {
	w.WriteI64LE(int64(f))
}

// DecodeBinary implements io.Serializable.
func (f *Fixed8) DecodeBinary(r *io.BinReader) {
	*f = Fixed8(r.ReadI64LE())
}

// MarshalJSON implements json.Marshaler.
func (f Fixed8) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Fixed8) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n float64
		if err2 := json.Unmarshal(data, &n); err2 != nil {
			return err
		}
		*f = Fixed8FromFloat(n)
		return nil
	}
	v, err := Fixed8FromString(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}
