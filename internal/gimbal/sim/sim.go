// Package sim is a software gimbal that speaks the frame protocol over any
// transport. It answers reads from its simulated state, integrates speed
// commands over time and emits attitude telemetry when auto-send is on.
// Faults can be injected to exercise retry and telemetry paths.
package sim

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/fixedpoint"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/monitoring"
	"github.com/banshee-data/gimbal/internal/transport"
)

// Version is reported in VSN replies.
const Version = "SIM-1.0.0"

const (
	defaultTick     = 20 * time.Millisecond
	defaultAutoSend = 100 * time.Millisecond
	// manualSpeed is the rate used for PTZ up/down/left/right, deg/s.
	manualSpeed = 10.0
	zoomMax     = 0x4000
	zoomRate    = 0x0800 // positions per second
)

// Options configure a Simulator.
type Options struct {
	Codec frame.Codec
	// Tick is the state integration period.
	Tick time.Duration
	// AutoSendInterval is the GAC telemetry period while auto-send is on.
	AutoSendInterval time.Duration
	// DropRate is the probability that a reply is not sent.
	DropRate float64
	// DuplicateRate is the probability that a reply is sent twice.
	DuplicateRate float64
	// Delay postpones every reply.
	Delay time.Duration
	// Seed makes fault injection reproducible.
	Seed uint64
}

// Stats counts simulator activity.
type Stats struct {
	Received   uint64 `json:"received"`
	Invalid    uint64 `json:"invalid"`
	Replied    uint64 `json:"replied"`
	Dropped    uint64 `json:"dropped"`
	Duplicated uint64 `json:"duplicated"`
	Telemetry  uint64 `json:"telemetry"`
}

type state struct {
	attitude    command.Attitude
	yawSpeed    float64
	pitchSpeed  float64
	yawTarget   *float64
	targetSpeed float64
	zoom        float64
	zoomDir     float64
	focus       int16
	recording   bool
	autoSend    bool
	host        address.Role
	settings    map[frame.Identifier]byte
	tracking    command.TrackingRect
}

// Simulator is a software gimbal.
type Simulator struct {
	tr   transport.Transport
	opts Options

	mu    sync.Mutex
	st    state
	rng   *rand.Rand
	sendM sync.Mutex

	received, invalid, replied     atomic.Uint64
	dropped, duplicated, telemetry atomic.Uint64
}

// New creates a simulator answering on tr.
func New(tr transport.Transport, opts Options) *Simulator {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.AutoSendInterval <= 0 {
		opts.AutoSendInterval = defaultAutoSend
	}
	return &Simulator{
		tr:   tr,
		opts: opts,
		rng:  rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9E3779B97F4A7C15)),
		st: state{
			host:     address.Network,
			settings: make(map[frame.Identifier]byte),
		},
	}
}

// Run serves requests until ctx is done or the transport closes.
func (s *Simulator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.integrate(ctx)
	}()
	defer wg.Wait()

	for {
		d, err := s.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return err
		}
		s.handle(ctx, d.Data)
	}
}

func (s *Simulator) integrate(ctx context.Context) {
	tick := time.NewTicker(s.opts.Tick)
	defer tick.Stop()
	last := time.Now()
	lastSend := last
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			s.Step(now.Sub(last))
			last = now
			if now.Sub(lastSend) >= s.opts.AutoSendInterval {
				lastSend = now
				s.autoSend(ctx)
			}
		}
	}
}

// Step advances the simulated motion by dt.
func (s *Simulator) Step(dt time.Duration) {
	sec := dt.Seconds()
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.st
	if st.yawTarget != nil {
		diff := *st.yawTarget - st.attitude.Yaw
		step := st.targetSpeed * sec
		if math.Abs(diff) <= step {
			st.attitude.Yaw = *st.yawTarget
			st.yawTarget = nil
		} else {
			st.attitude.Yaw += math.Copysign(step, diff)
		}
	} else {
		st.attitude.Yaw = wrap(st.attitude.Yaw + st.yawSpeed*sec)
	}
	st.attitude.Pitch = clamp(st.attitude.Pitch+st.pitchSpeed*sec, -90, 90)
	st.zoom = clamp(st.zoom+st.zoomDir*zoomRate*sec, 0, zoomMax)
}

func wrap(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// Attitude returns the simulated attitude.
func (s *Simulator) Attitude() command.Attitude {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.attitude
}

// SetAttitude moves the simulated gimbal instantly.
func (s *Simulator) SetAttitude(a command.Attitude) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.attitude = a
}

// Tracking returns the last tracking rectangle written.
func (s *Simulator) Tracking() command.TrackingRect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.tracking
}

// AutoSend reports whether attitude auto-send is on.
func (s *Simulator) AutoSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.autoSend
}

// Stats returns simulator counters.
func (s *Simulator) Stats() Stats {
	return Stats{
		Received:   s.received.Load(),
		Invalid:    s.invalid.Load(),
		Replied:    s.replied.Load(),
		Dropped:    s.dropped.Load(),
		Duplicated: s.duplicated.Load(),
		Telemetry:  s.telemetry.Load(),
	}
}

func (s *Simulator) handle(ctx context.Context, b []byte) {
	s.received.Add(1)
	req, err := s.opts.Codec.Decode(b)
	if err != nil {
		s.invalid.Add(1)
		monitoring.Debugf("sim: ignoring %q: %v", b, err)
		return
	}
	reply, ok := s.apply(req)
	if !ok {
		return
	}
	if s.opts.Delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.Delay):
		}
	}
	s.reply(ctx, reply)
}

// apply updates state for req and returns the reply, if any.
func (s *Simulator) apply(req frame.Frame) (frame.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.st
	st.host = req.Source

	if req.Control == frame.Read {
		return s.read(req)
	}
	switch req.Identifier {
	case command.PTZ:
		v, err := command.ParseHexByte(req.Payload)
		if err != nil {
			return frame.Frame{}, false
		}
		st.yawTarget = nil
		switch command.PTZAction(v) {
		case command.PTZStop:
			st.yawSpeed, st.pitchSpeed = 0, 0
		case command.PTZUp:
			st.pitchSpeed = manualSpeed
		case command.PTZDown:
			st.pitchSpeed = -manualSpeed
		case command.PTZLeft:
			st.yawSpeed = -manualSpeed
		case command.PTZRight:
			st.yawSpeed = manualSpeed
		case command.PTZHome:
			st.yawSpeed, st.pitchSpeed = 0, 0
			st.attitude = command.Attitude{}
		case command.PTZOneButtonDown:
			st.yawSpeed, st.pitchSpeed = 0, 0
			st.attitude.Pitch = -90
		}
	case command.GSM:
		v, err := fixedpoint.HexBE.ReadN(req.Payload, 2)
		if err != nil {
			return frame.Frame{}, false
		}
		st.yawTarget = nil
		st.yawSpeed = fixedpoint.Value(v[0], fixedpoint.DeciDegreePerSecond)
		st.pitchSpeed = fixedpoint.Value(v[1], fixedpoint.DeciDegreePerSecond)
	case command.GSY:
		v, err := fixedpoint.HexBE.Read(req.Payload)
		if err != nil {
			return frame.Frame{}, false
		}
		st.yawTarget = nil
		st.yawSpeed = fixedpoint.Value(v, fixedpoint.DeciDegreePerSecond)
	case command.GAY:
		if len(req.Payload) != 6 {
			return frame.Frame{}, false
		}
		a, err := fixedpoint.HexBE.Read(req.Payload[:4])
		if err != nil {
			return frame.Frame{}, false
		}
		sp, err := command.ParseHexByte(req.Payload[4:])
		if err != nil {
			return frame.Frame{}, false
		}
		target := fixedpoint.Value(a, fixedpoint.Centidegree)
		st.yawSpeed = 0
		st.yawTarget = &target
		st.targetSpeed = fixedpoint.Value(int16(sp), fixedpoint.DeciDegreePerSecond)
	case command.ZMC:
		v, err := command.ParseHexByte(req.Payload)
		if err != nil {
			return frame.Frame{}, false
		}
		switch command.ZoomAction(v) {
		case command.ZoomIn:
			st.zoomDir = 1
		case command.ZoomOut:
			st.zoomDir = -1
		default:
			st.zoomDir = 0
		}
	case command.REC:
		v, err := command.ParseHexByte(req.Payload)
		if err != nil {
			return frame.Frame{}, false
		}
		switch command.RecordAction(v) {
		case command.RecordStart:
			st.recording = true
		case command.RecordStop:
			st.recording = false
		case command.RecordToggle:
			st.recording = !st.recording
		}
	case command.GAA:
		v, err := command.ParseHexByte(req.Payload)
		if err != nil {
			return frame.Frame{}, false
		}
		st.autoSend = v == 0x01
	case command.LOC:
		r, err := command.ParseTrackingRect(req.Payload)
		if err != nil {
			return frame.Frame{}, false
		}
		st.tracking = r
	default:
		if v, err := command.ParseHexByte(req.Payload); err == nil {
			st.settings[req.Identifier] = v
		}
	}
	return frame.Frame{}, false
}

// read answers a read request from the current state. Must hold s.mu.
func (s *Simulator) read(req frame.Frame) (frame.Frame, bool) {
	st := &s.st
	switch req.Identifier {
	case command.GAC, command.GIC:
		p, err := st.attitude.Payload()
		if err != nil {
			return frame.Frame{}, false
		}
		return req.Reply(frame.Variable, p), true
	case command.ZOM:
		return req.Reply(frame.Variable, fixedpoint.HexBE.Append(nil, int16(st.zoom))), true
	case command.FOC:
		return req.Reply(frame.Variable, fixedpoint.HexBE.Append(nil, st.focus)), true
	case command.VSN:
		return req.Reply(frame.Variable, []byte(Version)), true
	case command.REC:
		if st.recording {
			return req.Reply(frame.Fixed, []byte("01")), true
		}
		return req.Reply(frame.Fixed, []byte("00")), true
	case command.GAA:
		if st.autoSend {
			return req.Reply(frame.Fixed, []byte("01")), true
		}
		return req.Reply(frame.Fixed, []byte("00")), true
	}
	def, ok := command.Lookup(req.Identifier)
	if !ok || !def.Readable {
		return frame.Frame{}, false
	}
	v := st.settings[req.Identifier]
	return req.Reply(frame.Fixed, []byte{upper(v >> 4), upper(v & 0x0F)}), true
}

func upper(n byte) byte { return "0123456789ABCDEF"[n] }

func (s *Simulator) autoSend(ctx context.Context) {
	s.mu.Lock()
	on, att, host := s.st.autoSend, s.st.attitude, s.st.host
	s.mu.Unlock()
	if !on {
		return
	}
	p, err := att.Payload()
	if err != nil {
		return
	}
	f := frame.Frame{
		Kind:        frame.Variable,
		Source:      address.Gimbal,
		Destination: host,
		Control:     frame.Read,
		Identifier:  command.GAC,
		Payload:     p,
	}
	if s.transmit(ctx, f) {
		s.telemetry.Add(1)
	}
}

func (s *Simulator) reply(ctx context.Context, f frame.Frame) {
	s.mu.Lock()
	drop := s.opts.DropRate > 0 && s.rng.Float64() < s.opts.DropRate
	dup := s.opts.DuplicateRate > 0 && s.rng.Float64() < s.opts.DuplicateRate
	s.mu.Unlock()
	if drop {
		s.dropped.Add(1)
		return
	}
	if !s.transmit(ctx, f) {
		return
	}
	s.replied.Add(1)
	if dup && s.transmit(ctx, f) {
		s.duplicated.Add(1)
	}
}

func (s *Simulator) transmit(ctx context.Context, f frame.Frame) bool {
	b, err := s.opts.Codec.Encode(f)
	if err != nil {
		monitoring.Logf("sim: cannot encode %s: %v", f, err)
		return false
	}
	s.sendM.Lock()
	defer s.sendM.Unlock()
	if err := s.tr.Send(ctx, b); err != nil {
		monitoring.Debugf("sim: send failed: %v", err)
		return false
	}
	return true
}
