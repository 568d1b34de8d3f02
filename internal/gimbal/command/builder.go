package command

import (
	"fmt"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/fixedpoint"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// MaxSpeed is the largest angular speed, in degrees per second, the gimbal
// accepts on either axis.
const MaxSpeed = 99.0

// PTZAction is the payload of a PTZ write.
type PTZAction byte

const (
	PTZStop             PTZAction = 0x00
	PTZUp               PTZAction = 0x01
	PTZDown             PTZAction = 0x02
	PTZLeft             PTZAction = 0x03
	PTZRight            PTZAction = 0x04
	PTZHome             PTZAction = 0x05
	PTZLock             PTZAction = 0x06
	PTZFollow           PTZAction = 0x07
	PTZLockFollowToggle PTZAction = 0x08
	PTZCalibrate        PTZAction = 0x09
	PTZOneButtonDown    PTZAction = 0x0A
)

// ZoomAction is the payload of a ZMC write.
type ZoomAction byte

const (
	ZoomStop ZoomAction = 0x00
	ZoomOut  ZoomAction = 0x01
	ZoomIn   ZoomAction = 0x02
)

// FocusAction is the payload of an FCC write.
type FocusAction byte

const (
	FocusStop   FocusAction = 0x00
	FocusNear   FocusAction = 0x01
	FocusFar    FocusAction = 0x02
	FocusAuto   FocusAction = 0x10
	FocusManual FocusAction = 0x11
)

// RecordAction is the payload of a REC write.
type RecordAction byte

const (
	RecordStop   RecordAction = 0x00
	RecordStart  RecordAction = 0x01
	RecordToggle RecordAction = 0x0A
)

// CaptureMode is the payload of a CAP write.
type CaptureMode byte

const (
	CaptureVisibleThermal CaptureMode = 0x01
	CaptureVisible        CaptureMode = 0x02
	CaptureThermal        CaptureMode = 0x03
	CaptureAllWithTemp    CaptureMode = 0x05
)

// Resolution is the payload of a VID write.
type Resolution byte

const (
	Resolution4K    Resolution = 0x00
	Resolution1080p Resolution = 0x01
	Resolution720p  Resolution = 0x02
)

// Bitrate is the payload of a BIT write.
type Bitrate byte

const (
	Bitrate2Mbps Bitrate = 0x01
	Bitrate4Mbps Bitrate = 0x03
	Bitrate8Mbps Bitrate = 0x07
)

// PIPMode is the payload of a PIP write.
type PIPMode byte

const (
	PIPMainOnly PIPMode = 0x00
	PIPMainSub  PIPMode = 0x01
	PIPSubMain  PIPMode = 0x02
	PIPSubOnly  PIPMode = 0x03
	PIPNext     PIPMode = 0x0A
)

// DayNightMode is the payload of an IRC write.
type DayNightMode byte

const (
	Day           DayNightMode = 0x00
	Night         DayNightMode = 0x01
	DayNightCycle DayNightMode = 0x0A
)

// Builder renders semantic commands into frames addressed from Source.
// The zero value sends from the network role.
type Builder struct {
	Source address.Role
}

func (b Builder) source() address.Role {
	if b.Source == address.Unknown {
		return address.Network
	}
	return b.Source
}

// hexByte renders v as two upper-case hex characters.
func hexByte(v byte) []byte {
	const digits = "0123456789ABCDEF"
	return []byte{digits[v>>4], digits[v&0x0F]}
}

func (b Builder) fixed(id frame.Identifier, ctrl frame.Control, v byte) frame.Frame {
	return frame.Frame{
		Kind:        frame.Fixed,
		Source:      b.source(),
		Destination: catalog[id].Destination,
		Control:     ctrl,
		Identifier:  id,
		Payload:     hexByte(v),
	}
}

func (b Builder) variable(id frame.Identifier, payload []byte) frame.Frame {
	return frame.Frame{
		Kind:        frame.Variable,
		Source:      b.source(),
		Destination: catalog[id].Destination,
		Control:     frame.Write,
		Identifier:  id,
		Payload:     payload,
	}
}

// Read builds the generic "00" read request for id.
func (b Builder) Read(id frame.Identifier) frame.Frame {
	return b.fixed(id, frame.Read, 0x00)
}

func (b Builder) Move(a PTZAction) frame.Frame { return b.fixed(PTZ, frame.Write, byte(a)) }
func (b Builder) Zoom(a ZoomAction) frame.Frame { return b.fixed(ZMC, frame.Write, byte(a)) }
func (b Builder) Focus(a FocusAction) frame.Frame { return b.fixed(FCC, frame.Write, byte(a)) }
func (b Builder) Record(a RecordAction) frame.Frame { return b.fixed(REC, frame.Write, byte(a)) }
func (b Builder) Capture(m CaptureMode) frame.Frame { return b.fixed(CAP, frame.Write, byte(m)) }
func (b Builder) SetResolution(r Resolution) frame.Frame { return b.fixed(VID, frame.Write, byte(r)) }
func (b Builder) SetBitrate(r Bitrate) frame.Frame { return b.fixed(BIT, frame.Write, byte(r)) }
func (b Builder) SetPIP(m PIPMode) frame.Frame { return b.fixed(PIP, frame.Write, byte(m)) }
func (b Builder) SetDayNight(m DayNightMode) frame.Frame { return b.fixed(IRC, frame.Write, byte(m)) }
func (b Builder) ReadAttitude() frame.Frame { return b.Read(GAC) }
func (b Builder) ReadGyroAttitude() frame.Frame { return b.Read(GIC) }
func (b Builder) ReadZoomPosition() frame.Frame { return b.Read(ZOM) }
func (b Builder) ReadZoomMagnification() frame.Frame { return b.Read(ZMP) }
func (b Builder) ReadFocusPosition() frame.Frame { return b.Read(FOC) }
func (b Builder) ReadRecording() frame.Frame { return b.Read(REC) }
func (b Builder) ReadVersion() frame.Frame { return b.Read(VSN) }
func (b Builder) ReadAttitudeAutoSend() frame.Frame { return b.Read(GAA) }
func (b Builder) ReadResolution() frame.Frame { return b.Read(VID) }
func (b Builder) ReadRotation() frame.Frame { return b.Read(ROT) }
func (b Builder) ReadPIP() frame.Frame { return b.Read(PIP) }

// ReadSDCard asks for free space, or total space when total is set.
func (b Builder) ReadSDCard(total bool) frame.Frame {
	if total {
		return b.fixed(SDC, frame.Read, 0x01)
	}
	return b.fixed(SDC, frame.Read, 0x00)
}

// SetRotation flips the image 180 degrees when flipped is set.
func (b Builder) SetRotation(flipped bool) frame.Frame {
	if flipped {
		return b.fixed(ROT, frame.Write, 0x02)
	}
	return b.fixed(ROT, frame.Write, 0x00)
}

// SetAttitudeAutoSend turns periodic GAC telemetry on or off.
func (b Builder) SetAttitudeAutoSend(on bool) frame.Frame {
	if on {
		return b.fixed(GAA, frame.Write, 0x01)
	}
	return b.fixed(GAA, frame.Write, 0x00)
}

func speedRaw(field string, degPerSec float64) (int16, error) {
	if degPerSec < -MaxSpeed || degPerSec > MaxSpeed {
		return 0, &frame.EncodingError{Field: field, Reason: fmt.Sprintf("%.1f deg/s outside +/-%.0f", degPerSec, MaxSpeed)}
	}
	return fixedpoint.Quantize(degPerSec, fixedpoint.DeciDegreePerSecond)
}

// SetSpeed drives both axes at the given angular speeds in degrees per second.
func (b Builder) SetSpeed(yaw, pitch float64) (frame.Frame, error) {
	y, err := speedRaw("yaw speed", yaw)
	if err != nil {
		return frame.Frame{}, err
	}
	p, err := speedRaw("pitch speed", pitch)
	if err != nil {
		return frame.Frame{}, err
	}
	payload := fixedpoint.HexBE.Append(nil, y)
	payload = fixedpoint.HexBE.Append(payload, p)
	return b.variable(GSM, payload), nil
}

// SetYawSpeed drives the yaw axis only.
func (b Builder) SetYawSpeed(yaw float64) (frame.Frame, error) {
	y, err := speedRaw("yaw speed", yaw)
	if err != nil {
		return frame.Frame{}, err
	}
	return b.variable(GSY, fixedpoint.HexBE.Append(nil, y)), nil
}

// MoveYaw turns to an absolute yaw angle in degrees at speed degrees per
// second. The speed field is a single byte, so it tops out at 25.5 deg/s.
func (b Builder) MoveYaw(angle, speed float64) (frame.Frame, error) {
	a, err := fixedpoint.Quantize(angle, fixedpoint.Centidegree)
	if err != nil {
		return frame.Frame{}, &frame.EncodingError{Field: "yaw angle", Reason: err.Error()}
	}
	s, err := fixedpoint.Quantize(speed, fixedpoint.DeciDegreePerSecond)
	if err != nil || s < 0 || s > 0xFF {
		return frame.Frame{}, &frame.EncodingError{Field: "yaw angle speed", Reason: fmt.Sprintf("%.1f deg/s outside 0..25.5", speed)}
	}
	payload := fixedpoint.HexBE.Append(nil, a)
	payload = append(payload, hexByte(byte(s))...)
	return b.variable(GAY, payload), nil
}

// Track starts tracking the rectangle r. A zero rectangle stops tracking.
func (b Builder) Track(r TrackingRect) frame.Frame {
	return b.variable(LOC, r.Bytes())
}

// StopTracking clears the tracking rectangle.
func (b Builder) StopTracking() frame.Frame {
	return b.Track(TrackingRect{})
}
