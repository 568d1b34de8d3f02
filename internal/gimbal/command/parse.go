package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// shortcut builds a frame from the arguments following its name.
type shortcut struct {
	usage string
	build func(b Builder, args []string) (frame.Frame, error)
}

func simple(f func(Builder) frame.Frame) shortcut {
	return shortcut{build: func(b Builder, args []string) (frame.Frame, error) {
		if len(args) != 0 {
			return frame.Frame{}, fmt.Errorf("takes no arguments")
		}
		return f(b), nil
	}}
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("want %d arguments, have %d", n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

var shortcuts = map[string]shortcut{
	"stop":       simple(func(b Builder) frame.Frame { return b.Move(PTZStop) }),
	"up":         simple(func(b Builder) frame.Frame { return b.Move(PTZUp) }),
	"down":       simple(func(b Builder) frame.Frame { return b.Move(PTZDown) }),
	"left":       simple(func(b Builder) frame.Frame { return b.Move(PTZLeft) }),
	"right":      simple(func(b Builder) frame.Frame { return b.Move(PTZRight) }),
	"home":       simple(func(b Builder) frame.Frame { return b.Move(PTZHome) }),
	"lock":       simple(func(b Builder) frame.Frame { return b.Move(PTZLock) }),
	"follow":     simple(func(b Builder) frame.Frame { return b.Move(PTZFollow) }),
	"calibrate":  simple(func(b Builder) frame.Frame { return b.Move(PTZCalibrate) }),
	"look-down":  simple(func(b Builder) frame.Frame { return b.Move(PTZOneButtonDown) }),
	"zoom-in":    simple(func(b Builder) frame.Frame { return b.Zoom(ZoomIn) }),
	"zoom-out":   simple(func(b Builder) frame.Frame { return b.Zoom(ZoomOut) }),
	"zoom-stop":  simple(func(b Builder) frame.Frame { return b.Zoom(ZoomStop) }),
	"focus-near": simple(func(b Builder) frame.Frame { return b.Focus(FocusNear) }),
	"focus-far":  simple(func(b Builder) frame.Frame { return b.Focus(FocusFar) }),
	"focus-auto": simple(func(b Builder) frame.Frame { return b.Focus(FocusAuto) }),
	"record":     simple(func(b Builder) frame.Frame { return b.Record(RecordToggle) }),
	"photo":      simple(func(b Builder) frame.Frame { return b.Capture(CaptureVisible) }),
	"day":        simple(func(b Builder) frame.Frame { return b.SetDayNight(Day) }),
	"night":      simple(func(b Builder) frame.Frame { return b.SetDayNight(Night) }),
	"pip":        simple(func(b Builder) frame.Frame { return b.SetPIP(PIPNext) }),
	"attitude":   simple(Builder.ReadAttitude),
	"gyro":       simple(Builder.ReadGyroAttitude),
	"zoom?":      simple(Builder.ReadZoomPosition),
	"focus?":     simple(Builder.ReadFocusPosition),
	"record?":    simple(Builder.ReadRecording),
	"version":    simple(Builder.ReadVersion),
	"untrack":    simple(Builder.StopTracking),
	"autosend": {usage: "autosend on|off", build: func(b Builder, args []string) (frame.Frame, error) {
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return frame.Frame{}, fmt.Errorf("want on or off")
		}
		return b.SetAttitudeAutoSend(args[0] == "on"), nil
	}},
	"speed": {usage: "speed <yaw deg/s> <pitch deg/s>", build: func(b Builder, args []string) (frame.Frame, error) {
		v, err := floats(args, 2)
		if err != nil {
			return frame.Frame{}, err
		}
		return b.SetSpeed(v[0], v[1])
	}},
	"yaw-speed": {usage: "yaw-speed <deg/s>", build: func(b Builder, args []string) (frame.Frame, error) {
		v, err := floats(args, 1)
		if err != nil {
			return frame.Frame{}, err
		}
		return b.SetYawSpeed(v[0])
	}},
	"yaw": {usage: "yaw <angle deg> <speed deg/s>", build: func(b Builder, args []string) (frame.Frame, error) {
		v, err := floats(args, 2)
		if err != nil {
			return frame.Frame{}, err
		}
		return b.MoveYaw(v[0], v[1])
	}},
	"track": {usage: "track <x> <y> <w> <h> <preview w> <preview h>", build: func(b Builder, args []string) (frame.Frame, error) {
		if len(args) != 6 {
			return frame.Frame{}, fmt.Errorf("want 6 arguments, have %d", len(args))
		}
		var v [6]int
		for i, a := range args {
			n, err := strconv.Atoi(a)
			if err != nil {
				return frame.Frame{}, fmt.Errorf("argument %d: %w", i+1, err)
			}
			v[i] = n
		}
		r, err := TrackingRectFromPixels(v[0], v[1], v[2], v[3], v[4], v[5])
		if err != nil {
			return frame.Frame{}, err
		}
		return b.Track(r), nil
	}},
}

// Shortcuts returns the names ParseLine accepts as its first word, sorted.
func Shortcuts() []string {
	out := make([]string, 0, len(shortcuts)+3)
	for name := range shortcuts {
		out = append(out, name)
	}
	out = append(out, "read", "write", "raw")
	sort.Strings(out)
	return out
}

// Usage returns a one line usage string for a shortcut, or "" if unknown.
func Usage(name string) string {
	s, ok := shortcuts[name]
	if !ok {
		return ""
	}
	if s.usage != "" {
		return s.usage
	}
	return name
}

// ParseLine turns an operator command line into a frame. Accepted forms:
//
//	<shortcut> [args]         e.g. "zoom-in", "speed 10 -5"
//	read <ID>                 generic read request
//	write <ID> <payload>      write with a literal payload, e.g. "write ZMC 01"
//	raw <frame>               a complete encoded frame, checksum included
func ParseLine(line string, b Builder, codec frame.Codec) (frame.Frame, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return frame.Frame{}, fmt.Errorf("empty command")
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "read":
		if len(args) != 1 {
			return frame.Frame{}, fmt.Errorf("read: want an identifier")
		}
		id := frame.Identifier(strings.ToUpper(args[0]))
		if _, ok := Lookup(id); !ok {
			return frame.Frame{}, fmt.Errorf("read: unknown identifier %q", args[0])
		}
		return b.Read(id), nil
	case "write":
		if len(args) != 2 {
			return frame.Frame{}, fmt.Errorf("write: want an identifier and a payload")
		}
		id := frame.Identifier(strings.ToUpper(args[0]))
		def, ok := Lookup(id)
		if !ok {
			return frame.Frame{}, fmt.Errorf("write: unknown identifier %q", args[0])
		}
		return frame.Frame{
			Kind:        def.Kind,
			Source:      b.source(),
			Destination: def.Destination,
			Control:     frame.Write,
			Identifier:  id,
			Payload:     []byte(strings.ToUpper(args[1])),
		}, nil
	case "raw":
		if len(args) != 1 {
			return frame.Frame{}, fmt.Errorf("raw: want one encoded frame")
		}
		return codec.Decode([]byte(args[0]))
	}
	s, ok := shortcuts[name]
	if !ok {
		return frame.Frame{}, fmt.Errorf("unknown command %q", fields[0])
	}
	f, err := s.build(b, args)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}
