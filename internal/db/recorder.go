package db

import (
	"context"
	"sync/atomic"

	"github.com/banshee-data/gimbal/internal/gimbal/dispatch"
	"github.com/banshee-data/gimbal/internal/gimbal/telemetry"
	"github.com/banshee-data/gimbal/internal/monitoring"
)

// DefaultOutcomeBuffer is the number of dispatch outcomes the recorder
// queues before it starts dropping them.
const DefaultOutcomeBuffer = 256

// RecorderStats counts recorder activity.
type RecorderStats struct {
	Frames          uint64 `json:"frames"`
	Commands        uint64 `json:"commands"`
	Errors          uint64 `json:"errors"`
	DroppedOutcomes uint64 `json:"dropped_outcomes"`
}

// Recorder writes telemetry events and dispatch outcomes to the database
// from a single goroutine so that neither ingestion nor Send waits on disk.
type Recorder struct {
	db       *DB
	outcomes chan dispatch.Outcome

	frames   atomic.Uint64
	commands atomic.Uint64
	errors   atomic.Uint64
	dropped  atomic.Uint64
}

func NewRecorder(db *DB, outcomeBuffer int) *Recorder {
	if outcomeBuffer <= 0 {
		outcomeBuffer = DefaultOutcomeBuffer
	}
	return &Recorder{db: db, outcomes: make(chan dispatch.Outcome, outcomeBuffer)}
}

// Observe queues o for the command log. It never blocks; use it as the
// session's dispatch observer.
func (r *Recorder) Observe(o dispatch.Outcome) {
	select {
	case r.outcomes <- o:
	default:
		r.dropped.Add(1)
	}
}

// Run records events and queued outcomes until ctx is cancelled or events
// is closed. Queued outcomes are flushed before returning.
func (r *Recorder) Run(ctx context.Context, events <-chan telemetry.Event) error {
	defer r.flush()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := r.db.RecordTelemetry(ev); err != nil {
				r.errors.Add(1)
				monitoring.Logf("recorder: telemetry %s: %v", ev.Frame.Identifier, err)
				continue
			}
			r.frames.Add(1)
		case o := <-r.outcomes:
			r.record(o)
		}
	}
}

func (r *Recorder) record(o dispatch.Outcome) {
	if err := r.db.RecordOutcome(o); err != nil {
		r.errors.Add(1)
		monitoring.Logf("recorder: command %s %s: %v", o.Identifier, o.ID, err)
		return
	}
	r.commands.Add(1)
}

func (r *Recorder) flush() {
	for {
		select {
		case o := <-r.outcomes:
			r.record(o)
		default:
			return
		}
	}
}

func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Frames:          r.frames.Load(),
		Commands:        r.commands.Load(),
		Errors:          r.errors.Load(),
		DroppedOutcomes: r.dropped.Load(),
	}
}
