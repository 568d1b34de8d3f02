// Package telemetry fans unsolicited gimbal frames out to subscribers.
//
// Frames that the dispatcher does not claim as responses (attitude
// auto-send, duplicate or late replies, device-initiated reports) are
// published here. A slow subscriber never blocks ingestion: when its buffer
// is full the event is dropped for that subscriber and counted.
package telemetry

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 64

// Event is one unsolicited frame as observed by the ingestion loop.
type Event struct {
	Seq        uint64      `json:"seq"`
	ReceivedAt time.Time   `json:"received_at"`
	Frame      frame.Frame `json:"-"`
}

type subscriber struct {
	ch      chan Event
	filter  map[frame.Identifier]struct{}
	dropped atomic.Uint64
}

func (s *subscriber) wants(id frame.Identifier) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[id]
	return ok
}

// SubscriberStats reports delivery counts for a single subscriber.
type SubscriberStats struct {
	ID      string   `json:"id"`
	Filter  []string `json:"filter,omitempty"`
	Queued  int      `json:"queued"`
	Dropped uint64   `json:"dropped"`
}

// Stats reports listener activity since creation.
type Stats struct {
	Published   uint64            `json:"published"`
	Delivered   uint64            `json:"delivered"`
	Dropped     uint64            `json:"dropped"`
	Subscribers []SubscriberStats `json:"subscribers"`
}

// Listener is a non-blocking publish/subscribe hub for telemetry events.
type Listener struct {
	bufferSize int

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	seq       atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewListener returns a Listener whose subscriber channels hold bufferSize
// events. Non-positive sizes use DefaultBufferSize.
func NewListener(bufferSize int) *Listener {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Listener{
		bufferSize:  bufferSize,
		subscribers: make(map[string]*subscriber),
	}
}

// Subscribe registers a new subscriber. With no identifiers every event is
// delivered; otherwise only events whose frame identifier is listed. The
// returned channel is closed by Unsubscribe or Close. Subscribing to a
// closed Listener yields an already closed channel.
func (l *Listener) Subscribe(ids ...frame.Identifier) (string, <-chan Event) {
	id := uuid.NewString()
	s := &subscriber{ch: make(chan Event, l.bufferSize)}
	if len(ids) > 0 {
		s.filter = make(map[frame.Identifier]struct{}, len(ids))
		for _, fid := range ids {
			s.filter[fid] = struct{}{}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		close(s.ch)
		return id, s.ch
	}
	l.subscribers[id] = s
	return id, s.ch
}

// Unsubscribe removes the subscriber and closes its channel. Unknown IDs are
// ignored.
func (l *Listener) Unsubscribe(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.subscribers[id]; ok {
		close(s.ch)
		delete(l.subscribers, id)
	}
}

// Publish assigns the next sequence number to f and offers it to every
// matching subscriber without blocking. It returns the event that was
// published.
func (l *Listener) Publish(f frame.Frame, receivedAt time.Time) Event {
	ev := Event{Seq: l.seq.Add(1), ReceivedAt: receivedAt, Frame: f}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ev
	}
	for _, s := range l.subscribers {
		if !s.wants(f.Identifier) {
			continue
		}
		select {
		case s.ch <- ev:
			l.delivered.Add(1)
		default:
			s.dropped.Add(1)
			l.dropped.Add(1)
		}
	}
	return ev
}

// Close closes every subscriber channel. Later publishes are discarded.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, s := range l.subscribers {
		close(s.ch)
		delete(l.subscribers, id)
	}
}

// Stats returns a snapshot of listener counters ordered by subscriber ID.
func (l *Listener) Stats() Stats {
	st := Stats{
		Published: l.seq.Load(),
		Delivered: l.delivered.Load(),
		Dropped:   l.dropped.Load(),
	}
	l.mu.RLock()
	for id, s := range l.subscribers {
		ss := SubscriberStats{ID: id, Queued: len(s.ch), Dropped: s.dropped.Load()}
		for fid := range s.filter {
			ss.Filter = append(ss.Filter, string(fid))
		}
		sort.Strings(ss.Filter)
		st.Subscribers = append(st.Subscribers, ss)
	}
	l.mu.RUnlock()
	sort.Slice(st.Subscribers, func(i, j int) bool { return st.Subscribers[i].ID < st.Subscribers[j].ID })
	return st
}
