package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/telemetry"
)

// TelemetryFrame is one stored unsolicited frame.
type TelemetryFrame struct {
	ID          int64     `json:"id"`
	Seq         uint64    `json:"seq"`
	ReceivedAt  time.Time `json:"received_at"`
	Header      string    `json:"header"`
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Control     string    `json:"control"`
	Identifier  string    `json:"identifier"`
	Payload     []byte    `json:"payload"`
}

// AttitudeSample is a GAC or GIC reading extracted from telemetry.
type AttitudeSample struct {
	ReceivedAt time.Time `json:"received_at"`
	Identifier string    `json:"identifier"`
	Yaw        float64   `json:"yaw"`
	Pitch      float64   `json:"pitch"`
	Roll       float64   `json:"roll"`
}

// RecordTelemetry stores ev and, when it carries an attitude, the decoded
// sample alongside it.
func (db *DB) RecordTelemetry(ev telemetry.Event) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	f := ev.Frame
	payload := f.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err = tx.Exec(`
		INSERT INTO telemetry_frames (
			seq, received_at, header, source, destination, control, identifier, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(ev.Seq), ev.ReceivedAt.UnixNano(), f.Kind.Marker(),
		f.Source.String(), f.Destination.String(), string(rune(f.Control)), string(f.Identifier), payload,
	)
	if err != nil {
		return fmt.Errorf("insert telemetry frame: %w", err)
	}

	if reading, err := command.Interpret(f); err == nil {
		if att, ok := reading.(command.Attitude); ok {
			_, err = tx.Exec(`
				INSERT INTO attitude_samples (received_at, identifier, yaw, pitch, roll)
				VALUES (?, ?, ?, ?, ?)`,
				ev.ReceivedAt.UnixNano(), string(f.Identifier), att.Yaw, att.Pitch, att.Roll,
			)
			if err != nil {
				return fmt.Errorf("insert attitude sample: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RecentFrames returns up to limit stored frames, newest first.
func (db *DB) RecentFrames(limit int) ([]TelemetryFrame, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT frame_id, seq, received_at, header, source, destination, control, identifier, payload
		FROM telemetry_frames
		ORDER BY received_at DESC, frame_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TelemetryFrame
	for rows.Next() {
		var (
			tf   TelemetryFrame
			seq  int64
			nano int64
		)
		if err := rows.Scan(&tf.ID, &seq, &nano, &tf.Header, &tf.Source, &tf.Destination,
			&tf.Control, &tf.Identifier, &tf.Payload); err != nil {
			return nil, err
		}
		tf.Seq = uint64(seq)
		tf.ReceivedAt = time.Unix(0, nano)
		out = append(out, tf)
	}
	return out, rows.Err()
}

// FrameCounts returns the number of stored frames per identifier.
func (db *DB) FrameCounts() (map[string]int64, error) {
	rows, err := db.Query(`SELECT identifier, COUNT(*) FROM telemetry_frames GROUP BY identifier`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			id string
			n  int64
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// AttitudeSince returns attitude samples received at or after since in
// chronological order, keeping the most recent limit when there are more.
// A zero since returns the most recent limit samples.
func (db *DB) AttitudeSince(since time.Time, limit int) ([]AttitudeSample, error) {
	if limit <= 0 {
		limit = 1000
	}
	var from int64
	if !since.IsZero() {
		from = since.UnixNano()
	}
	rows, err := db.Query(`
		SELECT received_at, identifier, yaw, pitch, roll FROM (
			SELECT sample_id, received_at, identifier, yaw, pitch, roll
			FROM attitude_samples
			WHERE received_at >= ?
			ORDER BY received_at DESC, sample_id DESC
			LIMIT ?
		) ORDER BY received_at ASC, sample_id ASC`, from, limit)
	if err != nil {
		return nil, err
	}
	return scanAttitude(rows)
}

func scanAttitude(rows *sql.Rows) ([]AttitudeSample, error) {
	defer rows.Close()
	var out []AttitudeSample
	for rows.Next() {
		var (
			s    AttitudeSample
			nano int64
		)
		if err := rows.Scan(&nano, &s.Identifier, &s.Yaw, &s.Pitch, &s.Roll); err != nil {
			return nil, err
		}
		s.ReceivedAt = time.Unix(0, nano)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneBefore deletes telemetry frames and attitude samples older than t and
// returns the number of rows removed.
func (db *DB) PruneBefore(t time.Time) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"telemetry_frames", "attitude_samples"} {
		res, err := tx.Exec("DELETE FROM "+table+" WHERE received_at < ?", t.UnixNano())
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, tx.Commit()
}
