package command

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

var (
	uart  = Builder{Source: address.Serial}
	codec = frame.Codec{Checksum: frame.ChecksumHex}
)

func must(t *testing.T) func(frame.Frame, error) frame.Frame {
	return func(f frame.Frame, err error) frame.Frame {
		t.Helper()
		require.NoError(t, err)
		return f
	}
}

func TestBuilderMatchesDeviceReference(t *testing.T) {
	tests := []struct {
		name  string
		frame frame.Frame
		want  string
	}{
		{"stop", uart.Move(PTZStop), "#TPUG2wPTZ006A"},
		{"up", uart.Move(PTZUp), "#TPUG2wPTZ016B"},
		{"home", uart.Move(PTZHome), "#TPUG2wPTZ056F"},
		{"gyro attitude", uart.ReadGyroAttitude(), "#TPUG2rGIC003A"},
		{"auto send status", uart.ReadAttitudeAutoSend(), "#TPUG2rGAA0030"},
		{"auto send on", uart.SetAttitudeAutoSend(true), "#TPUG2wGAA0136"},
		{"auto send off", uart.SetAttitudeAutoSend(false), "#TPUG2wGAA0035"},
		{"zoom stop", uart.Zoom(ZoomStop), "#TPUM2wZMC005C"},
		{"zoom in", uart.Zoom(ZoomIn), "#TPUM2wZMC025E"},
		{"zoom position", uart.ReadZoomPosition(), "#TPUM2rZOM0063"},
		{"focus near", uart.Focus(FocusNear), "#TPUM2wFCC013F"},
		{"focus position", uart.ReadFocusPosition(), "#TPUM2rFOC0045"},
		{"recording status", uart.ReadRecording(), "#TPUD2rREC003E"},
		{"capture visible", uart.Capture(CaptureVisible), "#TPUD2wCAP023F"},
		{"bitrate 4M", uart.SetBitrate(Bitrate4Mbps), "#TPUD2wBIT034B"},
		{"sd free", uart.ReadSDCard(false), "#TPUD2rSDC003E"},
		{"sd total", uart.ReadSDCard(true), "#TPUD2rSDC013F"},
		{"rotation normal", uart.SetRotation(false), "#TPUD2wROT005E"},
		{"network attitude", Builder{}.ReadAttitude(), "#TPPG2rGAC002D"},
		{"network version", Builder{Source: address.Network}.ReadVersion(), "#TPPD2rVSN0056"},
		{"speed", must(t)(uart.SetSpeed(10, -5)), "#tpUG8wGSM0064FFCE17"},
		{"yaw angle", must(t)(uart.MoveYaw(-90, 3)), "#tpUG6wGAYDCD81EAA"},
		{"yaw speed", must(t)(Builder{}.SetYawSpeed(20)), "#tpPG4wGSY00C817"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := codec.Encode(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestTrackingFrame(t *testing.T) {
	r, err := TrackingRectFromPixels(960, 540, 100, 100, 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, TrackingRect{X: 0, Y: 0, Width: 104, Height: 185, Flags: TrackingBlurClick}, r)

	f := Builder{}.Track(r)
	assert.Equal(t, frame.Variable, f.Kind)
	assert.Equal(t, address.System, f.Destination)
	enc, err := codec.Encode(f)
	require.NoError(t, err)
	assert.Equal(t, "#tpPDAwLOC\x00\x00\x00\x00\x00\x68\x00\xB9\x00\x085A", string(enc))

	back, err := ParseTrackingRect(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, r, back)

	stop := Builder{}.StopTracking()
	assert.Equal(t, make([]byte, 10), stop.Payload)
}

func TestTrackingRectFromPixelsErrors(t *testing.T) {
	_, err := TrackingRectFromPixels(10, 10, 5, 5, 0, 1080)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = TrackingRectFromPixels(2000, 10, 5, 5, 1920, 1080)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = TrackingRectFromPixels(10, 10, 5000, 5, 1920, 1080)
	assert.ErrorIs(t, err, frame.ErrEncoding)

	r, err := TrackingRectFromPixels(0, 1080, 0, 0, 1920, 1080)
	require.NoError(t, err)
	assert.Equal(t, int16(-1000), r.X)
	assert.Equal(t, int16(1000), r.Y)
}

func TestSpeedLimits(t *testing.T) {
	_, err := Builder{}.SetSpeed(99.5, 0)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = Builder{}.SetSpeed(0, -120)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = Builder{}.SetYawSpeed(-100)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = Builder{}.MoveYaw(400, 1)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = Builder{}.MoveYaw(10, 30)
	assert.ErrorIs(t, err, frame.ErrEncoding)
	_, err = Builder{}.MoveYaw(10, -1)
	assert.ErrorIs(t, err, frame.ErrEncoding)

	f, err := Builder{}.SetSpeed(-99, 99)
	require.NoError(t, err)
	assert.Equal(t, "FC2203DE", string(f.Payload))
}

// Every identifier in the catalog survives an encode/decode round trip with
// the request shape its builder produces, including negative fixed point.
func TestCatalogRoundTrip(t *testing.T) {
	b := Builder{}
	speed, err := b.SetSpeed(-12.3, 45.6)
	require.NoError(t, err)
	yaw, err := b.SetYawSpeed(-0.1)
	require.NoError(t, err)
	angle, err := b.MoveYaw(-179.99, 25.5)
	require.NoError(t, err)
	rangeFrame := frame.Frame{Kind: frame.Variable, Source: address.System, Destination: address.Network, Control: frame.Write, Identifier: LRF, Payload: []byte("01234.5")}

	byID := map[frame.Identifier]frame.Frame{
		PTZ: b.Move(PTZCalibrate),
		GAC: b.ReadAttitude(),
		GIC: b.ReadGyroAttitude(),
		GAA: b.SetAttitudeAutoSend(true),
		GSM: speed,
		GSY: yaw,
		GAY: angle,
		ZMC: b.Zoom(ZoomOut),
		ZOM: b.ReadZoomPosition(),
		ZMP: b.ReadZoomMagnification(),
		FCC: b.Focus(FocusAuto),
		FOC: b.ReadFocusPosition(),
		IRC: b.SetDayNight(DayNightCycle),
		REC: b.Record(RecordToggle),
		CAP: b.Capture(CaptureAllWithTemp),
		VID: b.SetResolution(Resolution720p),
		BIT: b.SetBitrate(Bitrate8Mbps),
		PIP: b.SetPIP(PIPNext),
		SDC: b.ReadSDCard(true),
		ROT: b.SetRotation(true),
		VSN: b.ReadVersion(),
		LOC: b.Track(TrackingRect{X: -500, Y: 250, Width: 100, Height: 120, Flags: 1}),
		LRF: rangeFrame,
	}

	for _, def := range All() {
		f, ok := byID[def.Identifier]
		if !ok {
			t.Errorf("no round trip case for %s", def.Identifier)
			continue
		}
		if f.Identifier != LRF {
			assert.Equal(t, def.Destination, f.Destination, def.Identifier)
			assert.Equal(t, def.Kind, f.Kind, def.Identifier)
		}
		for _, c := range []frame.Codec{{}, codec} {
			enc, err := c.Encode(f)
			require.NoError(t, err, def.Identifier)
			got, err := c.Decode(enc)
			require.NoError(t, err, def.Identifier)
			if diff := cmp.Diff(f, got); diff != "" {
				t.Errorf("%s round trip (-want +got):\n%s", def.Identifier, diff)
			}
		}
	}
	assert.Len(t, byID, len(All()))
}

func TestLookup(t *testing.T) {
	d, ok := Lookup(ZOM)
	require.True(t, ok)
	assert.Equal(t, address.Lens, d.Destination)
	assert.True(t, d.Readable)
	_, ok = Lookup("XXX")
	assert.False(t, ok)

	all := All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, string(all[i-1].Identifier), string(all[i].Identifier))
	}
}

func TestInterpret(t *testing.T) {
	reply := func(id frame.Identifier, ctrl frame.Control, payload string) frame.Frame {
		return frame.Frame{Kind: frame.Variable, Source: address.Gimbal, Destination: address.Network, Control: ctrl, Identifier: id, Payload: []byte(payload)}
	}
	tests := []struct {
		name string
		in   frame.Frame
		want any
	}{
		{"attitude", reply(GAC, frame.Read, "1194FB1E001E"), Attitude{Yaw: 45, Pitch: -12.5, Roll: 0.3}},
		{"gyro attitude", reply(GIC, frame.Read, "FFFF00000000"), Attitude{Yaw: -0.01}},
		{"zoom", reply(ZOM, frame.Read, "0100"), ZoomPosition(256)},
		{"focus negative", reply(FOC, frame.Read, "FFF6"), FocusPosition(-10)},
		{"recording", reply(REC, frame.Read, "01"), Recording(true)},
		{"not recording", reply(REC, frame.Read, "00"), Recording(false)},
		{"version", reply(VSN, frame.Read, "SIP-V1.2.3 "), Version("SIP-V1.2.3")},
		{"range", reply(LRF, frame.Write, "00123.4"), Range{Meters: 123.4, Valid: true}},
		{"range error", reply(LRF, frame.Write, "ERR0000"), Range{}},
		{"tracking", reply(LOC, frame.Write, "\xfe\x0c\x00\xfa\x00\x64\x00\x78\x00\x01"), TrackingRect{X: -500, Y: 250, Width: 100, Height: 120, Flags: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpret(tt.in)
			require.NoError(t, err)
			if a, ok := tt.want.(Attitude); ok {
				ga, ok := got.(Attitude)
				require.True(t, ok, "got %T", got)
				assert.InDelta(t, a.Yaw, ga.Yaw, 1e-9)
				assert.InDelta(t, a.Pitch, ga.Pitch, 1e-9)
				assert.InDelta(t, a.Roll, ga.Roll, 1e-9)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInterpretUninterpreted(t *testing.T) {
	for _, f := range []frame.Frame{
		Builder{}.Move(PTZStop),
		Builder{}.ReadAttitude(),
		{Identifier: "ZZZ"},
	} {
		_, err := Interpret(f)
		assert.True(t, errors.Is(err, ErrUninterpreted), "%s: %v", f, err)
	}
	_, err := Interpret(frame.Frame{Identifier: GAC, Payload: []byte("1194FB1E00G0")})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUninterpreted))
}

func TestAttitudePayload(t *testing.T) {
	p, err := Attitude{Yaw: 45, Pitch: -12.5, Roll: 0.3}.Payload()
	require.NoError(t, err)
	assert.Equal(t, "1194FB1E001E", string(p))

	_, err = Attitude{Yaw: 400}.Payload()
	assert.Error(t, err)
}

func TestParseHexByte(t *testing.T) {
	v, err := ParseHexByte([]byte("0A"))
	require.NoError(t, err)
	assert.Equal(t, byte(0x0A), v)
	_, err = ParseHexByte([]byte("A"))
	assert.Error(t, err)
	_, err = ParseHexByte([]byte("ZZ"))
	assert.Error(t, err)
}
