// Package gimbal ties the protocol pieces to a transport. A Session owns the
// transport, runs the ingestion loop that decodes every inbound datagram and
// hands each frame either to the dispatcher, when it answers a pending
// request, or to the telemetry listener.
package gimbal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/dispatch"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/gimbal/telemetry"
	"github.com/banshee-data/gimbal/internal/monitoring"
	"github.com/banshee-data/gimbal/internal/transport"
)

// Config holds the session settings.
type Config struct {
	Codec frame.Codec
	// Source is the role requests are sent from; Network when unset.
	Source address.Role
	// Dispatch is the default timeout and retry budget for Send.
	Dispatch dispatch.Options
	// SubscriberBuffer is the telemetry channel capacity per subscriber.
	SubscriberBuffer int
	// Observer, if set, receives every dispatch outcome.
	Observer func(dispatch.Outcome)
	// LatencyWindow is the number of recent response latencies kept for
	// Stats. Zero uses DefaultLatencyWindow.
	LatencyWindow int
}

// Session is a live connection to one gimbal.
type Session struct {
	codec   frame.Codec
	tr      transport.Transport
	opts    dispatch.Options
	builder command.Builder

	dispatcher *dispatch.Dispatcher
	listener   *telemetry.Listener

	ingest  ingestCounters
	latency *latencyWindow

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session over tr. The session owns tr and closes it
// on Close. Call Run to start ingestion.
func NewSession(tr transport.Transport, cfg Config) *Session {
	opts := cfg.Dispatch
	if opts == (dispatch.Options{}) {
		opts = dispatch.DefaultOptions()
	}
	s := &Session{
		codec:    cfg.Codec,
		tr:       tr,
		opts:     opts,
		builder:  command.Builder{Source: cfg.Source},
		listener: telemetry.NewListener(cfg.SubscriberBuffer),
		latency:  newLatencyWindow(cfg.LatencyWindow),
	}
	observer := cfg.Observer
	s.dispatcher = dispatch.New(cfg.Codec, tr, dispatch.WithObserver(func(o dispatch.Outcome) {
		if o.Err == nil {
			s.latency.add(o.Latency)
		}
		if observer != nil {
			observer(o)
		}
	}))
	return s
}

// Run reads from the transport until ctx is cancelled or the transport is
// closed. Undecodable datagrams are counted and dropped.
func (s *Session) Run(ctx context.Context) error {
	monitoring.Logf("gimbal session ingesting from %s", s.tr)
	for {
		d, err := s.tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, transport.ErrClosed) {
				return nil
			}
			return fmt.Errorf("gimbal: receive from %s: %w", s.tr, err)
		}
		s.Ingest(d)
	}
}

// Ingest processes one inbound datagram. Run calls it for every datagram;
// it is exported for replaying captures.
func (s *Session) Ingest(d transport.Datagram) {
	s.ingest.datagrams.Add(1)
	s.ingest.bytes.Add(uint64(len(d.Data)))
	f, err := s.codec.Decode(d.Data)
	if err != nil {
		if errors.Is(err, frame.ErrChecksum) {
			s.ingest.checksumErrors.Add(1)
		} else {
			s.ingest.framingErrors.Add(1)
		}
		monitoring.Debugf("dropping datagram from %s: %v (%q)", d.Peer, err, d.Data)
		return
	}
	s.ingest.decoded.Add(1)
	if s.dispatcher.Resolve(f) {
		s.ingest.claimed.Add(1)
		return
	}
	at := d.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}
	s.listener.Publish(f, at)
	s.ingest.published.Add(1)
}

// Send transmits req and waits for its response using the session's
// default timeout and retry budget.
func (s *Session) Send(ctx context.Context, req frame.Frame) (frame.Frame, error) {
	return s.dispatcher.Send(ctx, req, s.opts)
}

// SendWith is Send with an explicit timeout and retry budget.
func (s *Session) SendWith(ctx context.Context, req frame.Frame, opts dispatch.Options) (frame.Frame, error) {
	return s.dispatcher.Send(ctx, req, opts)
}

// Post transmits req without waiting for a response.
func (s *Session) Post(ctx context.Context, req frame.Frame) error {
	return s.dispatcher.Post(ctx, req)
}

// Subscribe registers for telemetry events, optionally filtered by
// identifier.
func (s *Session) Subscribe(ids ...frame.Identifier) (string, <-chan telemetry.Event) {
	return s.listener.Subscribe(ids...)
}

// Unsubscribe removes a telemetry subscriber.
func (s *Session) Unsubscribe(id string) { s.listener.Unsubscribe(id) }

// Pending returns the requests awaiting responses.
func (s *Session) Pending() []dispatch.PendingRequest { return s.dispatcher.Pending() }

// Builder returns the command builder addressed from the session's role.
func (s *Session) Builder() command.Builder { return s.builder }

// Codec returns the codec the session encodes and decodes with.
func (s *Session) Codec() frame.Codec { return s.codec }

// Close closes telemetry subscriptions and the owned transport.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.listener.Close()
		s.closeErr = s.tr.Close()
	})
	return s.closeErr
}
