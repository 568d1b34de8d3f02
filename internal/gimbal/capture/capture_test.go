package capture

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

var (
	hostIP   = net.IPv4(192, 168, 0, 10)
	cameraIP = net.IPv4(192, 168, 0, 108)
	builder  = command.Builder{}
	codec    = frame.Codec{Checksum: frame.ChecksumHex}
)

type capturedPacket struct {
	at      time.Duration
	toCam   bool
	payload []byte
	srcPort uint16
	dstPort uint16
}

func encode(t *testing.T, f frame.Frame) []byte {
	t.Helper()
	b, err := codec.Encode(f)
	require.NoError(t, err)
	return b
}

func toCamera(at time.Duration, b []byte) capturedPacket {
	return capturedPacket{at: at, toCam: true, payload: b, srcPort: 9004, dstPort: 9003}
}

func fromCamera(at time.Duration, b []byte) capturedPacket {
	return capturedPacket{at: at, payload: b, srcPort: 9003, dstPort: 9004}
}

func writePcap(t *testing.T, packets []capturedPacket) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	base := time.Unix(1700000000, 0)
	for _, p := range packets {
		src, dst := hostIP, cameraIP
		if !p.toCam {
			src, dst = cameraIP, hostIP
		}
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, IHL: 5, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: src, DstIP: dst}
		udp := &layers.UDP{SrcPort: layers.UDPPort(p.srcPort), DstPort: layers.UDPPort(p.dstPort)}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

		sb := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
		require.NoError(t, gopacket.SerializeLayers(sb, opts, eth, ip, udp, gopacket.Payload(p.payload)))

		data := sb.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: base.Add(p.at), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return &buf
}

func attitudeFrame(t *testing.T, dst address.Role) frame.Frame {
	t.Helper()
	p, err := command.Attitude{Yaw: 1}.Payload()
	require.NoError(t, err)
	return frame.Frame{Kind: frame.Variable, Source: address.Gimbal, Destination: dst, Control: frame.Read, Identifier: command.GAC, Payload: p}
}

func TestAnalyzeLatencyAndRetransmits(t *testing.T) {
	ms := time.Millisecond
	vsn := builder.ReadVersion()
	vsnReply := vsn.Reply(frame.Variable, []byte("1.2.3"))
	gac := builder.ReadAttitude()

	buf := writePcap(t, []capturedPacket{
		toCamera(0, encode(t, vsn)),
		fromCamera(20*ms, encode(t, vsnReply)),
		toCamera(100*ms, encode(t, gac)),
		toCamera(300*ms, encode(t, gac)), // retransmit
		fromCamera(340*ms, encode(t, attitudeFrame(t, address.Network))),
		toCamera(500*ms, encode(t, builder.ReadZoomPosition())), // never answered
		toCamera(600*ms, encode(t, builder.Move(command.PTZUp))),
	})

	report, err := Analyze(buf, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 7, report.Packets)
	assert.Equal(t, 4, report.Requests)
	assert.Equal(t, 1, report.Retransmits)
	assert.Equal(t, 2, report.Responses)
	assert.Equal(t, 1, report.Unanswered)
	assert.Equal(t, 0, report.Unsolicited)
	assert.Equal(t, 0, report.DecodeErrors)
	assert.Equal(t, 600*ms, report.Duration())

	// latency is measured from the last transmission
	assert.Equal(t, 2, report.Latency.Count)
	assert.InDelta(t, 30, report.Latency.MeanMs, 0.01)
	assert.InDelta(t, 40, report.Latency.MaxMs, 0.01)
}

func TestAnalyzeCadence(t *testing.T) {
	ms := time.Millisecond
	gac := encode(t, attitudeFrame(t, address.Network))
	var packets []capturedPacket
	for i := 0; i < 11; i++ {
		packets = append(packets, fromCamera(time.Duration(i)*100*ms, gac))
	}
	packets = append(packets, fromCamera(1050*ms, []byte("#TPGP2rGAC0000")))

	report, err := Analyze(writePcap(t, packets), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 11, report.Unsolicited)
	assert.Equal(t, 1, report.DecodeErrors)
	require.Len(t, report.Cadence, 1)
	c := report.Cadence[0]
	assert.Equal(t, command.GAC, c.Identifier)
	assert.Equal(t, 11, c.Count)
	assert.InDelta(t, 100, c.MeanIntervalMs, 0.01)
	assert.InDelta(t, 0, c.StdIntervalMs, 0.01)
	assert.InDelta(t, 10, c.RateHz, 0.01)
}

func TestAnalyzeIgnoresOtherTraffic(t *testing.T) {
	buf := writePcap(t, []capturedPacket{
		{at: 0, toCam: true, payload: []byte("dns"), srcPort: 5353, dstPort: 53},
	})
	report, err := Analyze(buf, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Packets)
	assert.Equal(t, 1, report.Ignored)
	assert.Empty(t, report.Cadence)
	assert.Equal(t, 0, report.Latency.Count)
}

func TestAnalyzeRejectsNonPcap(t *testing.T) {
	_, err := Analyze(bytes.NewReader([]byte("not a capture file at all")), DefaultOptions())
	assert.Error(t, err)
}

func TestCadenceSingleSample(t *testing.T) {
	c := cadence(command.GAC, []time.Time{time.Now()})
	assert.Equal(t, 1, c.Count)
	assert.Zero(t, c.RateHz)
}
