// Package frame encodes and decodes SIP-series gimbal protocol frames.
//
// A frame is laid out as
//
//	marker(3) src(1) dst(1) length(1) control(1) identifier(3) payload(n) checksum
//
// where the marker selects the header kind and the checksum is the sum of
// every preceding byte modulo 256. Codec is stateless and safe for
// concurrent use.
package frame

import (
	"fmt"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
)

// HeaderKind selects how the length slot of a frame is interpreted.
type HeaderKind uint8

const (
	// Fixed frames ("#TP") carry a payload whose length is known per identifier.
	Fixed HeaderKind = iota + 1
	// Variable frames ("#tp") carry a single hex digit length, payload up to 15 bytes.
	Variable
	// Extended frames ("#tP") carry a raw length byte, payload up to 255 bytes.
	Extended
)

const (
	markerLen = 3
	// HeaderLen is the number of bytes preceding the payload.
	HeaderLen = 10

	offSource      = 3
	offDestination = 4
	offLength      = 5
	offControl     = 6
	offIdentifier  = 7

	// MaxVariablePayload is the largest payload a Variable frame can declare.
	MaxVariablePayload = 0x0F
	// MaxExtendedPayload is the largest payload an Extended frame can declare.
	MaxExtendedPayload = 0xFF
	// DefaultFixedLength is the payload length of Fixed frames unless a codec
	// overrides it for an identifier.
	DefaultFixedLength = 2
)

var markers = map[HeaderKind]string{
	Fixed:    "#TP",
	Variable: "#tp",
	Extended: "#tP",
}

// Marker returns the three byte marker that opens a frame of this kind.
func (k HeaderKind) Marker() string { return markers[k] }

// Valid reports whether k is one of the supported header kinds.
func (k HeaderKind) Valid() bool { return k >= Fixed && k <= Extended }

func (k HeaderKind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Variable:
		return "variable"
	case Extended:
		return "extended"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseHeaderKind accepts a kind name or its marker.
func ParseHeaderKind(s string) (HeaderKind, error) {
	for k := Fixed; k <= Extended; k++ {
		if s == k.String() || s == k.Marker() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown header kind %q", s)
}

// kindOf maps a marker to its header kind, returning 0 when unknown.
func kindOf(b []byte) HeaderKind {
	if len(b) < markerLen || b[0] != '#' {
		return 0
	}
	switch string(b[1:markerLen]) {
	case "TP":
		return Fixed
	case "tp":
		return Variable
	case "tP":
		return Extended
	}
	return 0
}

// Control is the read/write flag of a frame.
type Control byte

const (
	Read  Control = 'r'
	Write Control = 'w'
)

// Valid reports whether c is Read or Write.
func (c Control) Valid() bool { return c == Read || c == Write }

func (c Control) String() string {
	switch c {
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("control(%#02x)", byte(c))
}

// Identifier is the three character command identifier, e.g. "GAC".
type Identifier string

// Valid reports whether id is exactly three printable, non-space ASCII bytes.
func (id Identifier) Valid() bool {
	if len(id) != 3 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7E {
			return false
		}
	}
	return true
}

// Frame is one decoded (or to be encoded) protocol frame. The checksum is
// not stored: it is a function of the other fields and is produced or
// verified by the codec.
type Frame struct {
	Kind        HeaderKind
	Source      address.Role
	Destination address.Role
	Control     Control
	Identifier  Identifier
	Payload     []byte
}

// RespondsTo reports whether f is shaped like the reply to req: the same
// identifier with source and destination swapped.
func (f Frame) RespondsTo(req Frame) bool {
	return f.Identifier == req.Identifier &&
		address.Swapped(req.Source, req.Destination, f.Source, f.Destination)
}

// Reply builds a frame addressed back to the sender of f.
func (f Frame) Reply(kind HeaderKind, payload []byte) Frame {
	return Frame{
		Kind:        kind,
		Source:      f.Destination,
		Destination: f.Source,
		Control:     f.Control,
		Identifier:  f.Identifier,
		Payload:     payload,
	}
}

func (f Frame) String() string {
	return fmt.Sprintf("%s %c>%c %c %s %q",
		f.Kind.Marker(), f.Source.Code(), f.Destination.Code(), byte(f.Control), f.Identifier, f.Payload)
}
