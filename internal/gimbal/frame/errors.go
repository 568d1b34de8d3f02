package frame

import (
	"errors"
	"fmt"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrEncoding = errors.New("frame: encoding error")
	ErrFraming  = errors.New("frame: framing error")
	ErrChecksum = errors.New("frame: checksum mismatch")
)

// EncodingError reports a frame that cannot be rendered, such as a payload
// too long for its header kind. It is a local programming or input error and
// nothing is transmitted.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("frame: cannot encode %s: %s", e.Field, e.Reason)
}

func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// FramingError reports bytes that are not a complete, structurally valid
// frame: truncation, an unreadable header or unknown address codes.
type FramingError struct {
	Reason string
	Len    int
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("frame: malformed %d byte frame: %s", e.Len, e.Reason)
}

func (e *FramingError) Is(target error) bool { return target == ErrFraming }

// ChecksumError reports a frame whose trailing checksum does not match its
// contents.
type ChecksumError struct {
	Computed byte
	Received byte
	// Unreadable is set when a hex checksum could not be parsed at all.
	Unreadable bool
}

func (e *ChecksumError) Error() string {
	if e.Unreadable {
		return fmt.Sprintf("frame: checksum unreadable, computed %02X", e.Computed)
	}
	return fmt.Sprintf("frame: checksum %02X, computed %02X", e.Received, e.Computed)
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }

func encodingErr(field, format string, args ...any) error {
	return &EncodingError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func framingErr(n int, format string, args ...any) error {
	return &FramingError{Len: n, Reason: fmt.Sprintf(format, args...)}
}
