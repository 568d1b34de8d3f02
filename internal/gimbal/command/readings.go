package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/gimbal/internal/gimbal/fixedpoint"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// ErrUninterpreted is returned by Interpret for frames that carry no reading,
// such as the echo of a write or an identifier without a known payload shape.
var ErrUninterpreted = errors.New("command: frame carries no reading")

// Attitude is the gimbal orientation in degrees.
type Attitude struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// ParseAttitude reads a GAC or GIC payload: yaw, pitch and roll as hex text
// int16 in hundredths of a degree.
func ParseAttitude(payload []byte) (Attitude, error) {
	v, err := fixedpoint.HexBE.ReadN(payload, 3)
	if err != nil {
		return Attitude{}, fmt.Errorf("attitude: %w", err)
	}
	return Attitude{
		Yaw:   fixedpoint.Value(v[0], fixedpoint.Centidegree),
		Pitch: fixedpoint.Value(v[1], fixedpoint.Centidegree),
		Roll:  fixedpoint.Value(v[2], fixedpoint.Centidegree),
	}, nil
}

// Payload renders a as a GAC reply payload.
func (a Attitude) Payload() ([]byte, error) {
	out := make([]byte, 0, 12)
	for _, deg := range []float64{a.Yaw, a.Pitch, a.Roll} {
		raw, err := fixedpoint.Quantize(deg, fixedpoint.Centidegree)
		if err != nil {
			return nil, err
		}
		out = fixedpoint.HexBE.Append(out, raw)
	}
	return out, nil
}

// TrackingBlurClick asks the tracker to refine a coarse click.
const TrackingBlurClick int16 = 8

// TrackingRect is the LOC payload. Coordinates are normalised so that the
// preview spans -1000..1000 on both axes; Width and Height are in the same
// units.
type TrackingRect struct {
	X      int16 `json:"x"`
	Y      int16 `json:"y"`
	Width  int16 `json:"width"`
	Height int16 `json:"height"`
	Flags  int16 `json:"flags"`
}

// TrackingRectFromPixels converts a box centred at (x, y) on a preview of
// previewW by previewH pixels.
func TrackingRectFromPixels(x, y, w, h, previewW, previewH int) (TrackingRect, error) {
	if previewW <= 0 || previewH <= 0 {
		return TrackingRect{}, &frame.EncodingError{Field: "preview", Reason: fmt.Sprintf("invalid size %dx%d", previewW, previewH)}
	}
	if x < 0 || x > previewW || y < 0 || y > previewH {
		return TrackingRect{}, &frame.EncodingError{Field: "tracking point", Reason: fmt.Sprintf("(%d,%d) outside %dx%d", x, y, previewW, previewH)}
	}
	if w < 0 || w > previewW || h < 0 || h > previewH {
		return TrackingRect{}, &frame.EncodingError{Field: "tracking box", Reason: fmt.Sprintf("%dx%d outside %dx%d", w, h, previewW, previewH)}
	}
	norm := func(v, span int) int16 { return int16(math.Round(2000 * float64(v) / float64(span))) }
	return TrackingRect{
		X:      norm(x, previewW) - 1000,
		Y:      norm(y, previewH) - 1000,
		Width:  norm(w, previewW),
		Height: norm(h, previewH),
		Flags:  TrackingBlurClick,
	}, nil
}

// Bytes renders r as five big-endian binary int16 fields.
func (r TrackingRect) Bytes() []byte {
	out := make([]byte, 0, 10)
	for _, v := range []int16{r.X, r.Y, r.Width, r.Height, r.Flags} {
		out = fixedpoint.BinaryBE.Append(out, v)
	}
	return out
}

// ParseTrackingRect reads a LOC payload.
func ParseTrackingRect(payload []byte) (TrackingRect, error) {
	v, err := fixedpoint.BinaryBE.ReadN(payload, 5)
	if err != nil {
		return TrackingRect{}, fmt.Errorf("tracking rect: %w", err)
	}
	return TrackingRect{X: v[0], Y: v[1], Width: v[2], Height: v[3], Flags: v[4]}, nil
}

// ZoomPosition is the raw lens zoom motor position reported by ZOM.
type ZoomPosition int16

// FocusPosition is the raw lens focus motor position reported by FOC.
type FocusPosition int16

// Recording reports whether the system is recording.
type Recording bool

// Version is the firmware version string reported by VSN.
type Version string

// Range is a laser rangefinder reading. Valid is false when the device
// reported ERR.
type Range struct {
	Meters float64 `json:"meters"`
	Valid  bool    `json:"valid"`
}

// ParseRange reads an LRF payload of the form "ddddd.d" or "ERR".
func ParseRange(payload []byte) (Range, error) {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "ERR") {
		return Range{}, nil
	}
	m, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	return Range{Meters: m, Valid: true}, nil
}

// ParseHexByte reads a two character hex payload such as "01".
func ParseHexByte(payload []byte) (byte, error) {
	if len(payload) != 2 {
		return 0, fmt.Errorf("hex byte: want 2 characters, have %d", len(payload))
	}
	v, err := strconv.ParseUint(string(payload), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("hex byte %q: %w", payload, err)
	}
	return byte(v), nil
}

// Interpret turns a frame received from the gimbal into a typed reading:
// Attitude, ZoomPosition, FocusPosition, Recording, Version, Range or
// TrackingRect.
func Interpret(f frame.Frame) (any, error) {
	switch f.Identifier {
	case GAC, GIC:
		if len(f.Payload) == 12 {
			return ParseAttitude(f.Payload)
		}
	case ZOM, FOC:
		if len(f.Payload) == 4 {
			v, err := fixedpoint.HexBE.Read(f.Payload)
			if err != nil {
				return nil, err
			}
			if f.Identifier == ZOM {
				return ZoomPosition(v), nil
			}
			return FocusPosition(v), nil
		}
	case REC:
		if f.Control == frame.Read && len(f.Payload) == 2 {
			v, err := ParseHexByte(f.Payload)
			if err != nil {
				return nil, err
			}
			return Recording(v == byte(RecordStart)), nil
		}
	case VSN:
		if len(f.Payload) > 2 {
			return Version(strings.TrimSpace(string(f.Payload))), nil
		}
	case LRF:
		return ParseRange(f.Payload)
	case LOC:
		if len(f.Payload) == 10 {
			return ParseTrackingRect(f.Payload)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUninterpreted, f)
}
