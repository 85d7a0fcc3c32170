// Package scheduler runs named background jobs on fixed intervals or at a
// fixed daily wall-clock time. Registration is idempotent by job name, so
// process restarts and repeated wiring never double-schedule a job.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/boardsync/pkg/observability"
)

// JobFunc is one unit of scheduled work. The context carries the per-run
// timeout.
type JobFunc func(ctx context.Context) error

// DailyTime is a wall-clock time of day, in UTC.
type DailyTime struct {
	Hour   int
	Minute int
}

// JobStats is a snapshot of one job's execution history.
type JobStats struct {
	Name      string
	Runs      int64
	Failures  int64
	LastRunAt time.Time
	LastError string
}

type job struct {
	name     string
	fn       JobFunc
	interval time.Duration
	daily    *DailyTime
}

// Registry holds the named jobs and runs each in its own goroutine, so a
// stuck external call in one job never starves the others.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	runTimeout time.Duration
	logger     *slog.Logger

	statsMu sync.Mutex
	stats   map[string]*JobStats
}

// NewRegistry creates a job registry. runTimeout bounds each job run;
// zero means 5 minutes.
func NewRegistry(runTimeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &Registry{
		jobs:       make(map[string]*job),
		stats:      make(map[string]*JobStats),
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// RegisterInterval registers a job to run every interval. Returns false
// when a job with this name already exists; the existing job is kept.
func (r *Registry) RegisterInterval(name string, interval time.Duration, fn JobFunc) bool {
	return r.register(&job{name: name, fn: fn, interval: interval})
}

// RegisterDaily registers a job to run once per day at the given UTC
// wall-clock time. Returns false when the name is already taken.
func (r *Registry) RegisterDaily(name string, at DailyTime, fn JobFunc) bool {
	return r.register(&job{name: name, fn: fn, daily: &at})
}

func (r *Registry) register(j *job) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[j.name]; exists {
		r.logger.Info("job already registered, skipping", "job", j.name)
		return false
	}
	r.jobs[j.name] = j

	r.statsMu.Lock()
	r.stats[j.name] = &JobStats{Name: j.name}
	r.statsMu.Unlock()

	if r.running {
		r.wg.Add(1)
		go r.runJob(r.ctx, j)
	}
	return true
}

// Start launches every registered job. It returns immediately.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.ctx = runCtx
	r.cancel = cancel
	r.running = true

	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.runJob(runCtx, j)
	}
	r.logger.Info("scheduler started", "jobs", len(r.jobs))
}

// Stop cancels all jobs and waits for in-flight runs to finish.
func (r *Registry) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("scheduler stopped")
}

// Stats returns a snapshot of every job's execution history.
func (r *Registry) Stats() []JobStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	out := make([]JobStats, 0, len(r.stats))
	for _, s := range r.stats {
		out = append(out, *s)
	}
	return out
}

func (r *Registry) runJob(ctx context.Context, j *job) {
	defer r.wg.Done()

	if j.daily != nil {
		r.runDaily(ctx, j)
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, j)
		}
	}
}

func (r *Registry) runDaily(ctx context.Context, j *job) {
	for {
		timer := time.NewTimer(time.Until(nextDaily(time.Now().UTC(), *j.daily)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.execute(ctx, j)
		}
	}
}

// nextDaily returns the next occurrence of the wall-clock time strictly
// after now.
func nextDaily(now time.Time, at DailyTime) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (r *Registry) execute(ctx context.Context, j *job) {
	runCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
	defer cancel()
	runCtx = observability.WithCorrelationID(runCtx, "")

	start := time.Now()
	err := j.fn(runCtx)
	duration := time.Since(start)

	r.statsMu.Lock()
	s := r.stats[j.name]
	s.Runs++
	s.LastRunAt = start
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	} else {
		s.LastError = ""
	}
	r.statsMu.Unlock()

	if err != nil {
		r.logger.ErrorContext(runCtx, "job failed",
			"job", j.name,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}
	r.logger.DebugContext(runCtx, "job completed",
		"job", j.name,
		"duration_ms", duration.Milliseconds(),
	)
}
