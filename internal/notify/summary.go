package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/notify/activity"
)

// ActivitySource provides the prior-day work log entries.
type ActivitySource interface {
	EntriesByDate(ctx context.Context, day time.Time) ([]activity.Entry, error)
}

// SummaryConfig configures the daily summary.
type SummaryConfig struct {
	Persona         Persona
	SupervisorEmail string
	FromAddress     string

	// SummaryMaxTokens bounds the generated summary. Zero means 400.
	SummaryMaxTokens int
}

// DailySummary sends one summary of yesterday's activity to the
// supervisor. There is no per-task flag; idempotency comes from the
// scheduler registering the job exactly once.
type DailySummary struct {
	source   ActivitySource
	composer Composer
	sender   Sender
	config   SummaryConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewDailySummary creates the daily summary service.
func NewDailySummary(source ActivitySource, composer Composer, sender Sender, cfg SummaryConfig, logger *slog.Logger) *DailySummary {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SummaryMaxTokens <= 0 {
		cfg.SummaryMaxTokens = 400
	}
	return &DailySummary{
		source:   source,
		composer: composer,
		sender:   sender,
		config:   cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock, for tests.
func (s *DailySummary) WithClock(now func() time.Time) *DailySummary {
	s.now = now
	return s
}

// Run fetches yesterday's entries, summarizes them and mails the
// supervisor. Any failure aborts this run; the next scheduled run tries
// again.
func (s *DailySummary) Run(ctx context.Context) error {
	if s.source == nil {
		s.logger.Warn("no activity source configured, skipping daily summary")
		return nil
	}

	yesterday := s.now().AddDate(0, 0, -1)

	entries, err := s.source.EntriesByDate(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("fetching daily logs: %w", err)
	}
	if len(entries) == 0 {
		s.logger.Info("no activity entries for daily summary", "date", yesterday.Format("2006-01-02"))
		return nil
	}

	body, err := s.composer.Compose(ctx,
		s.config.Persona.summarySystemPrompt(),
		s.config.Persona.summaryPrompt(yesterday, entries),
		s.config.SummaryMaxTokens,
	)
	if err != nil {
		return fmt.Errorf("composing daily summary: %w", err)
	}

	subject := "Daily Work Summary for " + yesterday.Format("2006-01-02")
	if err := s.sender.Send(ctx, subject, body, s.config.FromAddress, []string{s.config.SupervisorEmail}); err != nil {
		return fmt.Errorf("sending daily summary: %w", err)
	}

	s.logger.Info("daily summary sent", "date", yesterday.Format("2006-01-02"), "entries", len(entries))
	return nil
}
