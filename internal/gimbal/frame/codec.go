package frame

import (
	"github.com/banshee-data/gimbal/internal/gimbal/address"
)

// Codec renders frames to bytes and parses bytes back into frames.
// The zero value uses single byte checksums and the default fixed length
// for every identifier.
type Codec struct {
	Checksum ChecksumStyle
	// FixedLengths overrides DefaultFixedLength for specific identifiers
	// carried in Fixed frames.
	FixedLengths map[Identifier]int
}

// FixedLength returns the payload length of a Fixed frame carrying id.
func (c Codec) FixedLength(id Identifier) int {
	if n, ok := c.FixedLengths[id]; ok {
		return n
	}
	return DefaultFixedLength
}

// payloadLen interprets the length slot v for kind k.
func payloadLen(k HeaderKind, v byte) (int, bool) {
	switch k {
	case Fixed:
		if v >= '0' && v <= '9' {
			return int(v - '0'), true
		}
	case Variable:
		if n, ok := hexVal(v); ok {
			return int(n), true
		}
	case Extended:
		return int(v), true
	}
	return 0, false
}

// lengthSlot is the inverse of payloadLen.
func lengthSlot(k HeaderKind, n int) (byte, bool) {
	switch k {
	case Fixed:
		if n >= 0 && n <= 9 {
			return byte('0' + n), true
		}
	case Variable:
		if n >= 0 && n <= MaxVariablePayload {
			return upperHex[n], true
		}
	case Extended:
		if n >= 0 && n <= MaxExtendedPayload {
			return byte(n), true
		}
	}
	return 0, false
}

// Size returns the encoded size of a frame with an n byte payload.
func (c Codec) Size(n int) int { return HeaderLen + n + c.Checksum.Size() }

// FrameLength reads the header prefix of b and returns the total number of
// bytes the frame occupies on the wire. Only the first six bytes are needed.
func (c Codec) FrameLength(b []byte) (int, error) {
	if len(b) <= offLength {
		return 0, framingErr(len(b), "header needs %d bytes", offLength+1)
	}
	k := kindOf(b)
	if k == 0 {
		return 0, framingErr(len(b), "unknown marker %q", b[:markerLen])
	}
	n, ok := payloadLen(k, b[offLength])
	if !ok {
		return 0, framingErr(len(b), "unreadable %s length %#02x", k, b[offLength])
	}
	return c.Size(n), nil
}

// Encode renders f to a new byte slice.
func (c Codec) Encode(f Frame) ([]byte, error) {
	return c.Append(make([]byte, 0, c.Size(len(f.Payload))), f)
}

// Append renders f onto dst. On error dst is returned unmodified.
func (c Codec) Append(dst []byte, f Frame) ([]byte, error) {
	if !f.Kind.Valid() {
		return dst, encodingErr("header kind", "%s is not supported", f.Kind)
	}
	if !f.Source.Valid() {
		return dst, encodingErr("source", "%s has no address code", f.Source)
	}
	if !f.Destination.Valid() {
		return dst, encodingErr("destination", "%s has no address code", f.Destination)
	}
	if !f.Control.Valid() {
		return dst, encodingErr("control", "%s is not read or write", f.Control)
	}
	if !f.Identifier.Valid() {
		return dst, encodingErr("identifier", "%q is not three printable characters", string(f.Identifier))
	}
	if f.Kind == Fixed {
		if want := c.FixedLength(f.Identifier); len(f.Payload) != want {
			return dst, encodingErr("payload", "fixed %s payload must be %d bytes, got %d", f.Identifier, want, len(f.Payload))
		}
	}
	ls, ok := lengthSlot(f.Kind, len(f.Payload))
	if !ok {
		return dst, encodingErr("payload", "%d bytes exceeds %s frame capacity", len(f.Payload), f.Kind)
	}

	start := len(dst)
	dst = append(dst, f.Kind.Marker()...)
	dst = append(dst, f.Source.Code(), f.Destination.Code(), ls, byte(f.Control))
	dst = append(dst, string(f.Identifier)...)
	dst = append(dst, f.Payload...)
	return c.Checksum.append(dst, Sum(dst[start:])), nil
}

// Decode parses exactly one frame occupying all of b. The returned payload
// does not alias b.
//
// A frame whose checksum does not match is a ChecksumError. A frame that is
// too short for its declared length is a FramingError unless changing a
// single header byte would make both its length and checksum consistent, in
// which case the length slot itself was corrupted and it is a ChecksumError.
// Any structural fault in a checksum-valid frame is a FramingError.
func (c Codec) Decode(b []byte) (Frame, error) {
	n, ck := len(b), c.Checksum.Size()
	if n < HeaderLen+ck {
		return Frame{}, framingErr(n, "need at least %d bytes", HeaderLen+ck)
	}

	sum := Sum(b[:n-ck])
	stored, readable := c.Checksum.read(b[n-ck:])
	checksumErr := &ChecksumError{Computed: sum, Received: stored, Unreadable: !readable}
	intact := readable && stored == sum

	k := kindOf(b)
	plen, known := payloadLen(k, b[offLength])
	if k == 0 || !known {
		if !intact {
			return Frame{}, checksumErr
		}
		if k == 0 {
			return Frame{}, framingErr(n, "unknown marker %q", b[:markerLen])
		}
		return Frame{}, framingErr(n, "unreadable %s length %#02x", k, b[offLength])
	}

	if want := c.Size(plen); want != n {
		if readable && c.repairable(b, sum, stored) {
			return Frame{}, checksumErr
		}
		if want > n {
			return Frame{}, framingErr(n, "truncated, header declares %d bytes", want)
		}
		return Frame{}, framingErr(n, "%d trailing bytes after frame", n-want)
	}
	if !intact {
		return Frame{}, checksumErr
	}

	src, ok := address.Lookup(b[offSource])
	if !ok {
		return Frame{}, framingErr(n, "unknown source code %q", b[offSource])
	}
	dst, ok := address.Lookup(b[offDestination])
	if !ok {
		return Frame{}, framingErr(n, "unknown destination code %q", b[offDestination])
	}
	ctrl := Control(b[offControl])
	if !ctrl.Valid() {
		return Frame{}, framingErr(n, "unknown control %q", b[offControl])
	}
	id := Identifier(b[offIdentifier:HeaderLen])
	if !id.Valid() {
		return Frame{}, framingErr(n, "invalid identifier %q", string(id))
	}
	if k == Fixed {
		if want := c.FixedLength(id); plen != want {
			return Frame{}, framingErr(n, "fixed %s payload must be %d bytes, header declares %d", id, want, plen)
		}
	}

	payload := make([]byte, plen)
	copy(payload, b[HeaderLen:HeaderLen+plen])
	return Frame{
		Kind:        k,
		Source:      src,
		Destination: dst,
		Control:     ctrl,
		Identifier:  id,
		Payload:     payload,
	}, nil
}

// repairable reports whether replacing one of the bytes that determine the
// frame length (the marker or the length slot) yields a header whose declared
// length is len(b) and whose checksum matches. The replacement value is
// forced by the checksum, so each position has exactly one candidate.
func (c Codec) repairable(b []byte, sum, stored byte) bool {
	var hdr [offLength + 1]byte
	for _, i := range [...]int{0, 1, 2, offLength} {
		x := stored - sum + b[i]
		if x == b[i] {
			continue
		}
		copy(hdr[:], b)
		hdr[i] = x
		k := kindOf(hdr[:])
		if k == 0 {
			continue
		}
		if plen, ok := payloadLen(k, hdr[offLength]); ok && c.Size(plen) == len(b) {
			return true
		}
	}
	return false
}
