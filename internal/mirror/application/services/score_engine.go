// Package services holds the scoring engine that turns task completion
// timing into a per-member running score.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

// ErrFoldConflict is returned when a member aggregate update kept
// conflicting after all retries. The fold claim is released so the next
// pass retries; the conflict is never silently dropped.
var ErrFoldConflict = errors.New("score fold conflict")

const (
	onTimeScore    = 10.0
	latePenalty    = 0.5
	defaultRetries = 5
)

// ScoreEngineConfig tunes the fold retry behavior.
type ScoreEngineConfig struct {
	// MaxRetries bounds optimistic-lock retries on the member aggregate.
	MaxRetries int
}

// DefaultScoreEngineConfig returns production defaults.
func DefaultScoreEngineConfig() ScoreEngineConfig {
	return ScoreEngineConfig{MaxRetries: defaultRetries}
}

// ScoreEngine computes per-task delay scores and folds them into member
// aggregates exactly once per scoring event.
type ScoreEngine struct {
	tasks   domain.TaskRepository
	members domain.MemberRepository
	config  ScoreEngineConfig
	logger  *slog.Logger
}

// NewScoreEngine creates a scoring engine.
func NewScoreEngine(tasks domain.TaskRepository, members domain.MemberRepository, cfg ScoreEngineConfig, logger *slog.Logger) *ScoreEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}
	return &ScoreEngine{
		tasks:   tasks,
		members: members,
		config:  cfg,
		logger:  logger,
	}
}

// ComputeDelayScore returns the score for a task, or false when the task
// is not scoreable. A manual override always wins; otherwise the task must
// be completed with both a completion date and a deadline. On-time
// completion scores 10, every day late costs half a point, floored at 0.
func ComputeDelayScore(t *domain.Task) (float64, bool) {
	if t.ScoreOverride != nil {
		return *t.ScoreOverride, true
	}
	if !t.Completed || t.CompletedOn == nil || t.Deadline == nil {
		return 0, false
	}

	deadlineDay := domain.DateOf(*t.Deadline)
	completedDay := domain.DateOf(*t.CompletedOn)
	if !completedDay.After(deadlineDay) {
		return onTimeScore, true
	}

	daysLate := int(completedDay.Sub(deadlineDay) / (24 * time.Hour))
	score := onTimeScore - latePenalty*float64(daysLate)
	if score < 0 {
		score = 0
	}
	return score, true
}

// Fold incorporates the task's score into its member's running aggregate.
// It returns true when this call performed the fold.
//
// The fold is claimed on the task first via a conditional write, so two
// concurrent passes over the same task count it once. The member update
// itself runs under optimistic locking and retries on conflict; if it
// cannot be applied the claim is released and the conflict reported.
func (e *ScoreEngine) Fold(ctx context.Context, t *domain.Task) (bool, error) {
	score, ok := ComputeDelayScore(t)
	if !ok {
		return false, nil
	}
	if t.ScoreCounted {
		return false, nil
	}
	if t.MemberRef == "" {
		e.logger.Debug("skipping fold for unassigned task", "task_id", t.ID, "external_ref", t.ExternalRef)
		return false, nil
	}

	claimed, err := e.tasks.MarkScoreCounted(ctx, t.ID)
	if err != nil {
		return false, fmt.Errorf("claiming fold: %w", err)
	}
	if !claimed {
		return false, nil
	}

	if err := e.foldMember(ctx, t.MemberRef, score); err != nil {
		if clearErr := e.tasks.ClearScoreCounted(ctx, t.ID); clearErr != nil {
			e.logger.Error("failed to release fold claim",
				"task_id", t.ID,
				"error", clearErr,
			)
		}
		return false, err
	}

	t.ScoreCounted = true
	e.logger.Info("score folded",
		"task_id", t.ID,
		"external_ref", t.ExternalRef,
		"member_ref", t.MemberRef,
		"score", score,
	)
	return true, nil
}

func (e *ScoreEngine) foldMember(ctx context.Context, memberRef string, score float64) error {
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		member, err := e.members.FindByRef(ctx, memberRef)
		if errors.Is(err, domain.ErrMemberNotFound) {
			member = domain.NewMember(memberRef)
		} else if err != nil {
			return fmt.Errorf("loading member %s: %w", memberRef, err)
		}

		member.Fold(score)

		err = e.members.Save(ctx, member)
		if errors.Is(err, domain.ErrOptimisticLocking) {
			e.logger.Debug("member aggregate conflict, retrying",
				"member_ref", memberRef,
				"attempt", attempt+1,
			)
			continue
		}
		if err != nil {
			return fmt.Errorf("saving member %s: %w", memberRef, err)
		}
		return nil
	}
	return fmt.Errorf("%w: member %s after %d attempts", ErrFoldConflict, memberRef, e.config.MaxRetries)
}

// SetOverride records a manual score override and triggers a fresh fold.
// An override on an already-counted task is a new scoring event: the
// previous contribution stays in the aggregate.
func (e *ScoreEngine) SetOverride(ctx context.Context, externalRef string, score float64) error {
	t, err := e.tasks.FindByExternalRef(ctx, externalRef)
	if err != nil {
		return err
	}

	t.SetScoreOverride(score)
	if err := e.tasks.Save(ctx, t); err != nil {
		return err
	}
	if err := e.tasks.ClearScoreCounted(ctx, t.ID); err != nil {
		return err
	}
	t.ScoreCounted = false

	_, err = e.Fold(ctx, t)
	return err
}
