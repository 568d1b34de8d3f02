package frame

import (
	"fmt"
	"strings"
)

// ChecksumStyle selects how the trailing checksum byte is rendered on the wire.
type ChecksumStyle uint8

const (
	// ChecksumByte appends the checksum as a single raw byte.
	ChecksumByte ChecksumStyle = iota
	// ChecksumHex appends the checksum as two upper-case ASCII hex digits,
	// which is what SIP firmware emits.
	ChecksumHex
)

// Size is the number of trailing bytes the checksum occupies.
func (s ChecksumStyle) Size() int {
	if s == ChecksumHex {
		return 2
	}
	return 1
}

func (s ChecksumStyle) String() string {
	if s == ChecksumHex {
		return "hex"
	}
	return "byte"
}

// ParseChecksumStyle parses "byte" or "hex".
func ParseChecksumStyle(s string) (ChecksumStyle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "byte", "raw", "":
		return ChecksumByte, nil
	case "hex", "ascii":
		return ChecksumHex, nil
	}
	return 0, fmt.Errorf("unknown checksum style %q", s)
}

// Sum returns the byte-wise sum of b modulo 256.
func Sum(b []byte) byte {
	var s byte
	for _, c := range b {
		s += c
	}
	return s
}

const upperHex = "0123456789ABCDEF"

func (s ChecksumStyle) append(dst []byte, sum byte) []byte {
	if s == ChecksumHex {
		return append(dst, upperHex[sum>>4], upperHex[sum&0x0F])
	}
	return append(dst, sum)
}

// read extracts the checksum from its trailing bytes. Only upper-case hex
// digits are accepted so that a case flip is detected as corruption.
func (s ChecksumStyle) read(tail []byte) (byte, bool) {
	if s != ChecksumHex {
		if len(tail) != 1 {
			return 0, false
		}
		return tail[0], true
	}
	if len(tail) != 2 {
		return 0, false
	}
	hi, ok1 := hexVal(tail[0])
	lo, ok2 := hexVal(tail[1])
	return hi<<4 | lo, ok1 && ok2
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
