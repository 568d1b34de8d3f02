package frame

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
)

var hexCodec = Codec{Checksum: ChecksumHex}

func TestEncodeFixedNegativeOne(t *testing.T) {
	f := Frame{
		Kind:        Fixed,
		Source:      address.Network,
		Destination: address.Gimbal,
		Control:     Write,
		Identifier:  "ABC",
		Payload:     []byte{0xFF, 0xFF},
	}
	got, err := Codec{}.Encode(f)
	require.NoError(t, err)

	want := []byte("#TPPG2wABC\xff\xff")
	want = append(want, Sum(want))
	assert.Equal(t, want, got)
	assert.Equal(t, byte(0xCB), got[len(got)-1])

	back, err := Codec{}.Decode(got)
	require.NoError(t, err)
	if diff := cmp.Diff(f, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeMatchesDeviceReference(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{
			name:  "ptz stop over uart",
			frame: Frame{Kind: Fixed, Source: address.Serial, Destination: address.Gimbal, Control: Write, Identifier: "PTZ", Payload: []byte("00")},
			want:  "#TPUG2wPTZ006A",
		},
		{
			name:  "attitude query over network",
			frame: Frame{Kind: Fixed, Source: address.Network, Destination: address.Gimbal, Control: Read, Identifier: "GAC", Payload: []byte("00")},
			want:  "#TPPG2rGAC002D",
		},
		{
			name:  "enable auto send",
			frame: Frame{Kind: Fixed, Source: address.Serial, Destination: address.Gimbal, Control: Write, Identifier: "GAA", Payload: []byte("01")},
			want:  "#TPUG2wGAA0136",
		},
		{
			name:  "zoom in",
			frame: Frame{Kind: Fixed, Source: address.Serial, Destination: address.Lens, Control: Write, Identifier: "ZMC", Payload: []byte("02")},
			want:  "#TPUM2wZMC025E",
		},
		{
			name:  "version",
			frame: Frame{Kind: Fixed, Source: address.Network, Destination: address.System, Control: Read, Identifier: "VSN", Payload: []byte("00")},
			want:  "#TPPD2rVSN0056",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hexCodec.Encode(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))

			back, err := hexCodec.Decode([]byte(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.frame, back)
		})
	}
}

func TestEncodeVariableAndExtended(t *testing.T) {
	payload := []byte("1194FB1E001E")
	f := Frame{Kind: Variable, Source: address.Gimbal, Destination: address.Network, Control: Read, Identifier: "GAC", Payload: payload}
	got, err := hexCodec.Encode(f)
	require.NoError(t, err)
	assert.Equal(t, "#tpGPCrGAC1194FB1E001EC1", string(got))

	long := make([]byte, 200)
	for i := range long {
		long[i] = byte(i)
	}
	ext := Frame{Kind: Extended, Source: address.System, Destination: address.Network, Control: Read, Identifier: "VSN", Payload: long}
	enc, err := Codec{}.Encode(ext)
	require.NoError(t, err)
	assert.Equal(t, byte(200), enc[5])
	assert.Len(t, enc, HeaderLen+200+1)

	back, err := Codec{}.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, ext, back)
}

func TestEncodeErrors(t *testing.T) {
	base := Frame{Kind: Variable, Source: address.Network, Destination: address.Gimbal, Control: Write, Identifier: "GSM"}
	tests := []struct {
		name   string
		mutate func(*Frame)
	}{
		{"variable overflow", func(f *Frame) { f.Payload = make([]byte, 16) }},
		{"extended overflow", func(f *Frame) { f.Kind = Extended; f.Payload = make([]byte, 256) }},
		{"fixed wrong length", func(f *Frame) { f.Kind = Fixed; f.Payload = []byte("000") }},
		{"no kind", func(f *Frame) { f.Kind = 0 }},
		{"unknown source", func(f *Frame) { f.Source = address.Unknown }},
		{"unknown destination", func(f *Frame) { f.Destination = address.Role(99) }},
		{"bad control", func(f *Frame) { f.Control = 'x' }},
		{"short identifier", func(f *Frame) { f.Identifier = "GS" }},
		{"identifier with space", func(f *Frame) { f.Identifier = "G M" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := base
			tt.mutate(&f)
			dst := []byte("keep")
			out, err := Codec{}.Append(dst, f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrEncoding))
			var encErr *EncodingError
			assert.True(t, errors.As(err, &encErr))
			assert.Equal(t, "keep", string(out))
		})
	}
}

func TestEncodeCapacityBoundaries(t *testing.T) {
	v := Frame{Kind: Variable, Source: address.Network, Destination: address.Lens, Control: Write, Identifier: "ZMC", Payload: make([]byte, MaxVariablePayload)}
	enc, err := Codec{}.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, byte('F'), enc[5])

	e := Frame{Kind: Extended, Source: address.Network, Destination: address.Lens, Control: Write, Identifier: "ZMC", Payload: make([]byte, MaxExtendedPayload)}
	_, err = Codec{}.Encode(e)
	require.NoError(t, err)
}

func TestFixedLengthOverride(t *testing.T) {
	c := Codec{FixedLengths: map[Identifier]int{"XYZ": 4}}
	f := Frame{Kind: Fixed, Source: address.Network, Destination: address.Gimbal, Control: Write, Identifier: "XYZ", Payload: []byte("0102")}
	enc, err := c.Encode(f)
	require.NoError(t, err)
	assert.Equal(t, byte('4'), enc[5])

	back, err := c.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, f, back)

	// The default codec expects two bytes for XYZ.
	_, err = Codec{}.Decode(enc)
	assert.ErrorIs(t, err, ErrFraming)
}

func TestDecodeStructuralErrors(t *testing.T) {
	build := func(s string) []byte {
		b := []byte(s)
		return append(b, Sum(b))
	}
	tests := []struct {
		name string
		in   []byte
	}{
		{"unknown source", build("#TPXG2wPTZ00")},
		{"unknown destination", build("#TPPZ2wPTZ00")},
		{"bad control", build("#TPPG2xPTZ00")},
		{"identifier control char", build("#TPPG2wP\x01Z00")},
		{"unknown marker", build("#XYPG2wPTZ00")},
		{"unreadable variable length", build("#tpPGzwPTZ00")},
		{"trailing bytes", build("#tpPG1wPTZ00")},
		{"empty", nil},
		{"single hash", []byte("#")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Codec{}.Decode(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFraming)
			var fe *FramingError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestDecodeChecksumMismatch(t *testing.T) {
	_, err := hexCodec.Decode([]byte("#TPUG2wPTZ006B"))
	require.Error(t, err)
	var ce *ChecksumError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, byte(0x6A), ce.Computed)
	assert.Equal(t, byte(0x6B), ce.Received)

	// Lower-case hex digits are not what the device sends.
	_, err = hexCodec.Decode([]byte("#tpGPCrGAC1194FB1E001Ec1"))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestDecodePayloadDoesNotAlias(t *testing.T) {
	enc, err := Codec{}.Encode(Frame{Kind: Fixed, Source: address.Network, Destination: address.Gimbal, Control: Write, Identifier: "PTZ", Payload: []byte("01")})
	require.NoError(t, err)
	f, err := Codec{}.Decode(enc)
	require.NoError(t, err)
	enc[HeaderLen] = 'X'
	assert.Equal(t, []byte("01"), f.Payload)
}

func TestFrameLength(t *testing.T) {
	n, err := hexCodec.FrameLength([]byte("#tpGPC"))
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+12+2, n)

	n, err = Codec{}.FrameLength([]byte("#tP\x00\x00\x20"))
	require.NoError(t, err)
	assert.Equal(t, HeaderLen+32+1, n)

	_, err = Codec{}.FrameLength([]byte("#tp"))
	assert.ErrorIs(t, err, ErrFraming)
	_, err = Codec{}.FrameLength([]byte("$tpGPC"))
	assert.ErrorIs(t, err, ErrFraming)
}

func TestRespondsTo(t *testing.T) {
	req := Frame{Kind: Fixed, Source: address.Network, Destination: address.Gimbal, Control: Read, Identifier: "GAC", Payload: []byte("00")}
	resp := req.Reply(Variable, []byte("000000000000"))
	assert.True(t, resp.RespondsTo(req))
	assert.Equal(t, address.Gimbal, resp.Source)
	assert.Equal(t, address.Network, resp.Destination)

	other := resp
	other.Identifier = "GIC"
	assert.False(t, other.RespondsTo(req))

	wrongDir := resp
	wrongDir.Source = address.Lens
	assert.False(t, wrongDir.RespondsTo(req))
}

func TestParseHelpers(t *testing.T) {
	k, err := ParseHeaderKind("#tp")
	require.NoError(t, err)
	assert.Equal(t, Variable, k)
	k, err = ParseHeaderKind("extended")
	require.NoError(t, err)
	assert.Equal(t, Extended, k)
	_, err = ParseHeaderKind("#Tp")
	assert.Error(t, err)

	s, err := ParseChecksumStyle("HEX")
	require.NoError(t, err)
	assert.Equal(t, ChecksumHex, s)
	s, err = ParseChecksumStyle("byte")
	require.NoError(t, err)
	assert.Equal(t, ChecksumByte, s)
	_, err = ParseChecksumStyle("crc16")
	assert.Error(t, err)
}
