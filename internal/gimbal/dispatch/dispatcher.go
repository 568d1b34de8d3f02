// Package dispatch correlates outgoing gimbal commands with their responses.
//
// The gimbal protocol carries no sequence number, so a response is matched to
// its request by identifier and by the reversed source/destination pair. At
// most one request per identifier may be outstanding; requests with distinct
// identifiers proceed independently.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
	"github.com/banshee-data/gimbal/internal/monitoring"
)

const (
	DefaultTimeout    = time.Second
	DefaultMaxRetries = 2
)

// Sender writes one datagram to the gimbal.
type Sender interface {
	Send(ctx context.Context, datagram []byte) error
}

// Options bound how long Send waits for a response.
type Options struct {
	// Timeout is measured from the most recent transmission.
	Timeout time.Duration
	// MaxRetries is the number of retransmissions after the first attempt.
	MaxRetries int
}

// DefaultOptions returns the timeout and retry budget used when none is given.
func DefaultOptions() Options {
	return Options{Timeout: DefaultTimeout, MaxRetries: DefaultMaxRetries}
}

func (o Options) normalize() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return o
}

// PendingRequest is a snapshot of a request awaiting its response.
type PendingRequest struct {
	ID               string           `json:"id"`
	Identifier       frame.Identifier `json:"identifier"`
	ReplySource      address.Role     `json:"reply_source"`
	ReplyDestination address.Role     `json:"reply_destination"`
	IssuedAt         time.Time        `json:"issued_at"`
	RetriesRemaining int              `json:"retries_remaining"`
	Timeout          time.Duration    `json:"timeout"`
	Attempts         int              `json:"attempts"`
}

// Outcome describes a completed Send, successful or not.
type Outcome struct {
	ID         string
	Identifier frame.Identifier
	Attempts   int
	Started    time.Time
	Latency    time.Duration
	Err        error
}

type pending struct {
	PendingRequest
	request frame.Frame
	done    chan frame.Frame
}

// Stats counts dispatcher activity since creation.
type Stats struct {
	Sent        uint64 `json:"sent"`
	Retransmits uint64 `json:"retransmits"`
	Posted      uint64 `json:"posted"`
	Resolved    uint64 `json:"resolved"`
	Timeouts    uint64 `json:"timeouts"`
	Busy        uint64 `json:"busy"`
	Cancelled   uint64 `json:"cancelled"`
	Failed      uint64 `json:"failed"`
}

// Dispatcher sends requests and resolves them with responses fed to Resolve
// by the ingestion loop.
type Dispatcher struct {
	codec frame.Codec
	tx    Sender

	mu      sync.Mutex
	pending map[frame.Identifier]*pending

	observer func(Outcome)

	sent, retransmits, posted, resolved atomic.Uint64
	timeouts, busy, cancelled, failed   atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver registers f to be called after every Send completes.
func WithObserver(f func(Outcome)) Option {
	return func(d *Dispatcher) { d.observer = f }
}

// New creates a Dispatcher that encodes with codec and writes to tx.
func New(codec frame.Codec, tx Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		codec:   codec,
		tx:      tx,
		pending: make(map[frame.Identifier]*pending),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Send transmits req and waits for the first frame with the same identifier
// travelling in the opposite direction. With no response within
// opts.Timeout the identical bytes are retransmitted, up to opts.MaxRetries
// times, before failing with a TimeoutError. Cancelling ctx abandons the
// request and frees its slot, so a late response is treated as telemetry.
func (d *Dispatcher) Send(ctx context.Context, req frame.Frame, opts Options) (frame.Frame, error) {
	opts = opts.normalize()
	datagram, err := d.codec.Encode(req)
	if err != nil {
		return frame.Frame{}, err
	}

	now := time.Now()
	p := &pending{
		PendingRequest: PendingRequest{
			ID:               uuid.NewString(),
			Identifier:       req.Identifier,
			ReplySource:      req.Destination,
			ReplyDestination: req.Source,
			IssuedAt:         now,
			RetriesRemaining: opts.MaxRetries,
			Timeout:          opts.Timeout,
		},
		request: req,
		done:    make(chan frame.Frame, 1),
	}

	d.mu.Lock()
	if cur, ok := d.pending[req.Identifier]; ok {
		since := cur.IssuedAt
		d.mu.Unlock()
		d.busy.Add(1)
		err := &BusyError{Identifier: req.Identifier, Since: since}
		d.complete(Outcome{ID: p.ID, Identifier: req.Identifier, Started: now, Err: err})
		return frame.Frame{}, err
	}
	d.pending[req.Identifier] = p
	d.mu.Unlock()

	resp, err := d.await(ctx, p, datagram)
	d.release(p)

	d.mu.Lock()
	attempts := p.Attempts
	d.mu.Unlock()
	d.complete(Outcome{
		ID:         p.ID,
		Identifier: req.Identifier,
		Attempts:   attempts,
		Started:    now,
		Latency:    time.Since(now),
		Err:        err,
	})
	return resp, err
}

func (d *Dispatcher) await(ctx context.Context, p *pending, datagram []byte) (frame.Frame, error) {
	timer := time.NewTimer(p.Timeout)
	defer timer.Stop()

	for {
		d.mu.Lock()
		p.Attempts++
		p.IssuedAt = time.Now()
		attempt := p.Attempts
		d.mu.Unlock()

		if err := d.tx.Send(ctx, datagram); err != nil {
			if resp, ok := p.resolved(); ok {
				return resp, nil
			}
			if ctx.Err() != nil {
				d.cancelled.Add(1)
				return frame.Frame{}, ctx.Err()
			}
			d.failed.Add(1)
			return frame.Frame{}, fmt.Errorf("dispatch: send %s: %w", p.Identifier, err)
		}
		if attempt == 1 {
			d.sent.Add(1)
		} else {
			d.retransmits.Add(1)
		}
		timer.Reset(p.Timeout)

		select {
		case resp := <-p.done:
			d.resolved.Add(1)
			return resp, nil
		case <-ctx.Done():
			if resp, ok := p.resolved(); ok {
				d.resolved.Add(1)
				return resp, nil
			}
			d.cancelled.Add(1)
			return frame.Frame{}, ctx.Err()
		case <-timer.C:
		}

		if resp, ok := p.resolved(); ok {
			d.resolved.Add(1)
			return resp, nil
		}
		d.mu.Lock()
		if p.RetriesRemaining == 0 {
			d.mu.Unlock()
			d.timeouts.Add(1)
			return frame.Frame{}, &TimeoutError{Identifier: p.Identifier, Attempts: attempt, Timeout: p.Timeout}
		}
		p.RetriesRemaining--
		left := p.RetriesRemaining
		d.mu.Unlock()
		monitoring.Logf("dispatch %s: no response within %v, retransmitting (%d retries left)", p.Identifier, p.Timeout, left)
	}
}

// resolved returns a response delivered by Resolve without blocking.
func (p *pending) resolved() (frame.Frame, bool) {
	select {
	case resp := <-p.done:
		return resp, true
	default:
		return frame.Frame{}, false
	}
}

// release frees the identifier slot if p still holds it.
func (d *Dispatcher) release(p *pending) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending[p.Identifier] == p {
		delete(d.pending, p.Identifier)
	}
}

func (d *Dispatcher) complete(o Outcome) {
	if d.observer != nil {
		d.observer(o)
	}
}

// Post transmits req without registering a pending request, for commands the
// device does not acknowledge.
func (d *Dispatcher) Post(ctx context.Context, req frame.Frame) error {
	datagram, err := d.codec.Encode(req)
	if err != nil {
		return err
	}
	if err := d.tx.Send(ctx, datagram); err != nil {
		d.failed.Add(1)
		return fmt.Errorf("dispatch: post %s: %w", req.Identifier, err)
	}
	d.posted.Add(1)
	return nil
}

// Resolve offers an inbound frame to the pending table. It reports whether
// the frame completed a pending request; unclaimed frames are telemetry.
// Only the first matching frame is claimed.
func (d *Dispatcher) Resolve(f frame.Frame) bool {
	d.mu.Lock()
	p, ok := d.pending[f.Identifier]
	if !ok || !f.RespondsTo(p.request) {
		d.mu.Unlock()
		return false
	}
	delete(d.pending, f.Identifier)
	d.mu.Unlock()

	p.done <- f
	return true
}

// Pending returns a snapshot of outstanding requests ordered by identifier.
func (d *Dispatcher) Pending() []PendingRequest {
	d.mu.Lock()
	out := make([]PendingRequest, 0, len(d.pending))
	for _, p := range d.pending {
		out = append(out, p.PendingRequest)
	}
	d.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:        d.sent.Load(),
		Retransmits: d.retransmits.Load(),
		Posted:      d.posted.Load(),
		Resolved:    d.resolved.Load(),
		Timeouts:    d.timeouts.Load(),
		Busy:        d.busy.Load(),
		Cancelled:   d.cancelled.Load(),
		Failed:      d.failed.Load(),
	}
}
