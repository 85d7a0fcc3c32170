package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	assert.True(t, r.RegisterInterval("sync", time.Minute, func(context.Context) error { return nil }))
	assert.False(t, r.RegisterInterval("sync", time.Second, func(context.Context) error { return nil }))
	assert.True(t, r.RegisterDaily("summary", DailyTime{Hour: 18}, func(context.Context) error { return nil }))
	assert.False(t, r.RegisterDaily("summary", DailyTime{Hour: 6}, func(context.Context) error { return nil }))

	stats := r.Stats()
	assert.Len(t, stats, 2)
}

func TestRegistry_IntervalJobRuns(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	var runs atomic.Int64
	r.RegisterInterval("tick", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	r.Start(context.Background())
	defer r.Stop()

	waitFor(t, func() bool { return runs.Load() >= 2 })
}

func TestRegistry_StatsTrackFailures(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	var runs atomic.Int64
	r.RegisterInterval("flaky", 10*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("board unreachable")
		}
		return nil
	})

	r.Start(context.Background())
	defer r.Stop()

	waitFor(t, func() bool { return runs.Load() >= 2 })
	waitFor(t, func() bool {
		s := r.Stats()
		return len(s) == 1 && s[0].Runs >= 2 && s[0].Failures == 1 && s[0].LastError == ""
	})

	s := r.Stats()[0]
	assert.Equal(t, "flaky", s.Name)
	assert.False(t, s.LastRunAt.IsZero())
}

func TestRegistry_LateRegistrationStartsJob(t *testing.T) {
	r := NewRegistry(time.Minute, nil)
	r.Start(context.Background())
	defer r.Stop()

	var runs atomic.Int64
	require.True(t, r.RegisterInterval("late", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	waitFor(t, func() bool { return runs.Load() >= 1 })
}

func TestRegistry_StopWaitsForJobs(t *testing.T) {
	r := NewRegistry(time.Minute, nil)

	started := make(chan struct{})
	var finished atomic.Bool
	r.RegisterInterval("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	r.Start(context.Background())
	<-started
	r.Stop()

	assert.True(t, finished.Load())
}

func TestNextDaily(t *testing.T) {
	at := DailyTime{Hour: 18, Minute: 30}

	t.Run("same day when the time is still ahead", func(t *testing.T) {
		now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC), nextDaily(now, at))
	})

	t.Run("next day when the time already passed", func(t *testing.T) {
		now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC), nextDaily(now, at))
	})

	t.Run("exactly at the mark schedules tomorrow", func(t *testing.T) {
		now := time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC), nextDaily(now, at))
	})
}
