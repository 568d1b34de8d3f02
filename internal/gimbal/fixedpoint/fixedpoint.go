// Package fixedpoint converts between engineering values and the signed
// 16-bit fixed-point fields carried in gimbal payloads.
//
// Fields are two's complement int16 scaled by a per-field resolution, e.g.
// hundredths of a degree for angles. A field is either raw bytes or the
// upper-case hex text of those bytes, in a byte order that is fixed per
// identifier.
package fixedpoint

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Resolutions used by the gimbal.
const (
	// Centidegree is the resolution of attitude angles.
	Centidegree = 0.01
	// DeciDegreePerSecond is the resolution of angular speeds.
	DeciDegreePerSecond = 0.1
)

var (
	ErrRange  = errors.New("fixedpoint: value out of range")
	ErrLength = errors.New("fixedpoint: short field")
	ErrDigit  = errors.New("fixedpoint: invalid hex digit")
)

// Layout describes how one int16 field is laid out in a payload.
type Layout struct {
	Order binary.ByteOrder
	// Text selects the hex text rendering (four characters) instead of two
	// raw bytes.
	Text bool
}

var (
	BinaryBE = Layout{Order: binary.BigEndian}
	BinaryLE = Layout{Order: binary.LittleEndian}
	HexBE    = Layout{Order: binary.BigEndian, Text: true}
	HexLE    = Layout{Order: binary.LittleEndian, Text: true}
)

// Size returns the number of payload bytes one field occupies.
func (l Layout) Size() int {
	if l.Text {
		return 4
	}
	return 2
}

func (l Layout) order() binary.ByteOrder {
	if l.Order == nil {
		return binary.BigEndian
	}
	return l.Order
}

const upperHex = "0123456789ABCDEF"

// Append renders v onto dst.
func (l Layout) Append(dst []byte, v int16) []byte {
	var raw [2]byte
	l.order().PutUint16(raw[:], uint16(v))
	if !l.Text {
		return append(dst, raw[:]...)
	}
	for _, b := range raw {
		dst = append(dst, upperHex[b>>4], upperHex[b&0x0F])
	}
	return dst
}

// Read parses one field from the start of src.
func (l Layout) Read(src []byte) (int16, error) {
	if len(src) < l.Size() {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrLength, l.Size(), len(src))
	}
	var raw [2]byte
	if l.Text {
		for i := range raw {
			hi, ok1 := digit(src[2*i])
			lo, ok2 := digit(src[2*i+1])
			if !ok1 || !ok2 {
				return 0, fmt.Errorf("%w in %q", ErrDigit, src[:4])
			}
			raw[i] = hi<<4 | lo
		}
	} else {
		copy(raw[:], src)
	}
	return int16(l.order().Uint16(raw[:])), nil
}

// ReadN parses n consecutive fields from src, which must be exactly n fields long.
func (l Layout) ReadN(src []byte, n int) ([]int16, error) {
	if len(src) != n*l.Size() {
		return nil, fmt.Errorf("%w: want %d fields in %d bytes, have %d", ErrLength, n, n*l.Size(), len(src))
	}
	out := make([]int16, n)
	for i := range out {
		v, err := l.Read(src[i*l.Size():])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func digit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// Quantize converts value to raw units of resolution, rounding half away
// from zero. Values outside the int16 range fail with ErrRange.
func Quantize(value, resolution float64) (int16, error) {
	if resolution <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v at resolution %v", ErrRange, value, resolution)
	}
	raw := math.Round(value / resolution)
	if raw < math.MinInt16 || raw > math.MaxInt16 {
		return 0, fmt.Errorf("%w: %v at resolution %v", ErrRange, value, resolution)
	}
	return int16(raw), nil
}

// Value converts raw units back to an engineering value.
func Value(raw int16, resolution float64) float64 {
	return float64(raw) * resolution
}
