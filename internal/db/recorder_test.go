package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gimbal/internal/gimbal/command"
	"github.com/banshee-data/gimbal/internal/gimbal/dispatch"
	"github.com/banshee-data/gimbal/internal/gimbal/telemetry"
)

func TestRecorderStoresEventsAndOutcomes(t *testing.T) {
	db := setupTestDB(t)
	l := telemetry.NewListener(16)
	_, events := l.Subscribe()

	rec := NewRecorder(db, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, events) }()

	base := time.Unix(1700000000, 0)
	for i := 0; i < 3; i++ {
		ev := attitudeEvent(t, 0, base.Add(time.Duration(i)*time.Second), command.Attitude{Yaw: float64(i)})
		l.Publish(ev.Frame, ev.ReceivedAt)
	}
	rec.Observe(dispatch.Outcome{ID: "one", Identifier: command.VSN, Attempts: 1, Started: base})

	require.Eventually(t, func() bool {
		s := rec.Stats()
		return s.Frames == 3 && s.Commands == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.True(t, errors.Is(<-done, context.Canceled))

	samples, err := db.AttitudeSince(time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.InDelta(t, 2, samples[2].Yaw, 0.001)

	entries, err := db.RecentCommands(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "one", entries[0].ID)
}

func TestRecorderReturnsWhenEventsClose(t *testing.T) {
	db := setupTestDB(t)
	l := telemetry.NewListener(4)
	_, events := l.Subscribe()
	rec := NewRecorder(db, 4)

	// Outcomes queued before shutdown are flushed.
	rec.Observe(dispatch.Outcome{ID: "late", Identifier: command.GAC, Started: time.Now()})
	l.Close()

	require.NoError(t, rec.Run(context.Background(), events))
	assert.Equal(t, uint64(1), rec.Stats().Commands)
}

func TestRecorderObserveDropsWhenFull(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, 2)
	for i := 0; i < 5; i++ {
		rec.Observe(dispatch.Outcome{Identifier: command.GAC})
	}
	assert.Equal(t, uint64(3), rec.Stats().DroppedOutcomes)
}

func TestRecorderCountsWriteErrors(t *testing.T) {
	db := setupTestDB(t)
	rec := NewRecorder(db, 4)
	rec.Observe(dispatch.Outcome{ID: "dup", Identifier: command.GAC, Started: time.Now()})
	rec.Observe(dispatch.Outcome{ID: "dup", Identifier: command.GAC, Started: time.Now()})

	events := make(chan telemetry.Event)
	close(events)
	require.NoError(t, rec.Run(context.Background(), events))

	s := rec.Stats()
	assert.Equal(t, uint64(1), s.Commands)
	assert.Equal(t, uint64(1), s.Errors)
}
