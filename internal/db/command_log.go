package db

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal/dispatch"
)

// Outcome labels stored in command_log.outcome.
const (
	OutcomeOK        = "ok"
	OutcomeTimeout   = "timeout"
	OutcomeBusy      = "busy"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// CommandLogEntry is one completed request.
type CommandLogEntry struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	StartedAt  time.Time `json:"started_at"`
	Attempts   int       `json:"attempts"`
	LatencyMs  float64   `json:"latency_ms"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}

// OutcomeLabel classifies a dispatch error.
func OutcomeLabel(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, dispatch.ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, dispatch.ErrBusy):
		return OutcomeBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	}
	return OutcomeFailed
}

// RecordOutcome appends o to the command log.
func (db *DB) RecordOutcome(o dispatch.Outcome) error {
	var msg any
	if o.Err != nil {
		msg = o.Err.Error()
	}
	_, err := db.Exec(`
		INSERT INTO command_log (command_id, identifier, started_at, attempts, latency_ms, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Identifier), o.Started.UnixNano(), o.Attempts,
		float64(o.Latency)/float64(time.Millisecond), OutcomeLabel(o.Err), msg,
	)
	return err
}

// RecentCommands returns up to limit log entries, newest first.
func (db *DB) RecentCommands(limit int) ([]CommandLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT command_id, identifier, started_at, attempts, latency_ms, outcome, COALESCE(error, '')
		FROM command_log
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandLogEntry
	for rows.Next() {
		var (
			e    CommandLogEntry
			nano int64
		)
		if err := rows.Scan(&e.ID, &e.Identifier, &nano, &e.Attempts, &e.LatencyMs, &e.Outcome, &e.Error); err != nil {
			return nil, err
		}
		e.StartedAt = time.Unix(0, nano)
		out = append(out, e)
	}
	return out, rows.Err()
}

// OutcomeCounts returns the number of log entries per outcome label.
func (db *DB) OutcomeCounts() (map[string]int64, error) {
	rows, err := db.Query(`SELECT outcome, COUNT(*) FROM command_log GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			label string
			n     int64
		)
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
