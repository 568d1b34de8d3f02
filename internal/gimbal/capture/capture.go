// Package capture analyses recorded gimbal UDP traffic: it pairs requests
// with their responses to measure latency and retransmissions, and measures
// the cadence of unsolicited frames such as attitude auto-send.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gimbal/internal/gimbal"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/transport"
)

// Options selects the traffic to analyse.
type Options struct {
	Codec frame.Codec
	// ControlPort is the camera's command port.
	ControlPort uint16
	// ListenPort is the host port responses are sent to.
	ListenPort uint16
}

// DefaultOptions matches the stock camera configuration.
func DefaultOptions() Options {
	return Options{
		Codec:       frame.Codec{Checksum: frame.ChecksumHex},
		ControlPort: transport.DefaultControlPort,
		ListenPort:  transport.DefaultListenPort,
	}
}

// Cadence summarises the spacing of one unsolicited identifier.
type Cadence struct {
	Identifier     frame.Identifier `json:"identifier"`
	Count          int              `json:"count"`
	MeanIntervalMs float64          `json:"mean_interval_ms"`
	StdIntervalMs  float64          `json:"std_interval_ms"`
	RateHz         float64          `json:"rate_hz"`
}

// Report is the result of Analyze.
type Report struct {
	Packets      int                   `json:"packets"`
	Ignored      int                   `json:"ignored"`
	DecodeErrors int                   `json:"decode_errors"`
	Requests     int                   `json:"requests"`
	Retransmits  int                   `json:"retransmits"`
	Responses    int                   `json:"responses"`
	Unanswered   int                   `json:"unanswered"`
	Unsolicited  int                   `json:"unsolicited"`
	First        time.Time             `json:"first"`
	Last         time.Time             `json:"last"`
	Latency      gimbal.LatencySummary `json:"latency"`
	Cadence      []Cadence             `json:"cadence"`
}

// Duration is the time between the first and last analysed packet.
func (r *Report) Duration() time.Duration { return r.Last.Sub(r.First) }

type outstanding struct {
	req  frame.Frame
	last time.Time
}

type analyzer struct {
	opts      Options
	report    Report
	pending   map[frame.Identifier]*outstanding
	latencies []float64
	arrivals  map[frame.Identifier][]time.Time
}

// Analyze reads a pcap stream and reports on the gimbal traffic in it.
func Analyze(r io.Reader, opts Options) (*Report, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pcap header: %w", err)
	}
	a := &analyzer{
		opts:     opts,
		pending:  make(map[frame.Identifier]*outstanding),
		arrivals: make(map[frame.Identifier][]time.Time),
	}

	source := gopacket.NewPacketSource(reader, reader.LinkType())
	for {
		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet %d: %w", a.report.Packets+1, err)
		}
		a.packet(packet)
	}
	return a.finish(), nil
}

func (a *analyzer) packet(p gopacket.Packet) {
	a.report.Packets++
	udpLayer := p.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		a.report.Ignored++
		return
	}
	udp := udpLayer.(*layers.UDP)

	toCamera := uint16(udp.DstPort) == a.opts.ControlPort
	fromCamera := uint16(udp.SrcPort) == a.opts.ControlPort || uint16(udp.DstPort) == a.opts.ListenPort
	if !toCamera && !fromCamera {
		a.report.Ignored++
		return
	}

	ts := p.Metadata().Timestamp
	if a.report.First.IsZero() || ts.Before(a.report.First) {
		a.report.First = ts
	}
	if ts.After(a.report.Last) {
		a.report.Last = ts
	}

	f, err := a.opts.Codec.Decode(udp.Payload)
	if err != nil {
		a.report.DecodeErrors++
		return
	}
	if toCamera {
		a.request(f, ts)
		return
	}
	a.inbound(f, ts)
}

func (a *analyzer) request(f frame.Frame, ts time.Time) {
	if f.Control != frame.Read {
		// writes are posted and never answered
		a.report.Requests++
		return
	}
	if o, ok := a.pending[f.Identifier]; ok && o.req.Source == f.Source && o.req.Destination == f.Destination {
		a.report.Retransmits++
		o.last = ts
		return
	}
	a.report.Requests++
	a.pending[f.Identifier] = &outstanding{req: f, last: ts}
}

func (a *analyzer) inbound(f frame.Frame, ts time.Time) {
	if o, ok := a.pending[f.Identifier]; ok && f.RespondsTo(o.req) {
		delete(a.pending, f.Identifier)
		a.report.Responses++
		a.latencies = append(a.latencies, float64(ts.Sub(o.last))/float64(time.Millisecond))
		return
	}
	a.report.Unsolicited++
	a.arrivals[f.Identifier] = append(a.arrivals[f.Identifier], ts)
}

func (a *analyzer) finish() *Report {
	a.report.Unanswered = len(a.pending)
	a.report.Latency = gimbal.Summarize(a.latencies)

	ids := make([]frame.Identifier, 0, len(a.arrivals))
	for id := range a.arrivals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	a.report.Cadence = make([]Cadence, 0, len(ids))
	for _, id := range ids {
		a.report.Cadence = append(a.report.Cadence, cadence(id, a.arrivals[id]))
	}
	return &a.report
}

func cadence(id frame.Identifier, at []time.Time) Cadence {
	c := Cadence{Identifier: id, Count: len(at)}
	if len(at) < 2 {
		return c
	}
	intervals := make([]float64, 0, len(at)-1)
	for i := 1; i < len(at); i++ {
		intervals = append(intervals, float64(at[i].Sub(at[i-1]))/float64(time.Millisecond))
	}
	c.MeanIntervalMs, c.StdIntervalMs = stat.MeanStdDev(intervals, nil)
	if len(intervals) == 1 {
		c.StdIntervalMs = 0
	}
	if c.MeanIntervalMs > 0 {
		c.RateHz = 1000 / c.MeanIntervalMs
	}
	return c
}
