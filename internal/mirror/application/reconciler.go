// Package application contains the reconciliation engine that merges
// external board state into the local task mirror.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/board"
	"github.com/felixgeelhaar/boardsync/internal/mirror/application/services"
	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

// BoardClient is the slice of the board API the reconciler needs.
type BoardClient interface {
	ListCards(ctx context.Context) ([]board.CardSnapshot, error)
	GetList(ctx context.Context, listID string) (board.ListInfo, error)
	GetMember(ctx context.Context, memberID string) (board.MemberProfile, error)
}

// ProfileCache caches member profiles between passes. A nil implementation
// behaves as an always-miss cache.
type ProfileCache interface {
	Get(ctx context.Context, memberID string) (board.MemberProfile, bool)
	Set(ctx context.Context, profile board.MemberProfile)
}

type noopProfileCache struct{}

func (noopProfileCache) Get(context.Context, string) (board.MemberProfile, bool) {
	return board.MemberProfile{}, false
}
func (noopProfileCache) Set(context.Context, board.MemberProfile) {}

// ReconcilerConfig configures a reconciliation pass.
type ReconcilerConfig struct {
	// DoneListName classifies a list as "done" by case-insensitive match.
	DoneListName string
}

// Result summarizes one reconciliation pass.
type Result struct {
	Created            int
	Updated            int
	Completed          int
	Reopened           int
	Deleted            int
	Folded             int
	EnrichmentFailures int
	SaveFailures       int
}

// Reconciler mirrors the external card set into local task records,
// detects completion transitions and triggers score folds.
type Reconciler struct {
	client   BoardClient
	tasks    domain.TaskRepository
	scorer   *services.ScoreEngine
	profiles ProfileCache
	config   ReconcilerConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(client BoardClient, tasks domain.TaskRepository, scorer *services.ScoreEngine, profiles ProfileCache, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DoneListName == "" {
		cfg.DoneListName = "done"
	}
	if profiles == nil {
		profiles = noopProfileCache{}
	}
	return &Reconciler{
		client:   client,
		tasks:    tasks,
		scorer:   scorer,
		profiles: profiles,
		config:   cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock, for tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Run executes one full reconciliation pass.
//
// The complete card set is fetched up front; a fetch failure aborts the
// pass before any local write so the mirror is never partial. Per-card
// failures degrade gracefully: a list or member lookup failure leaves the
// task without enrichment, and a save failure (including an optimistic
// conflict with an overlapping pass) skips that card; both are picked up
// again on the next pass. The deletion sweep runs only after every upsert
// in the pass succeeded.
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	cards, err := r.client.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching card list: %w", err)
	}

	result := &Result{}
	listNames := make(map[string]string)
	keepRefs := make([]string, 0, len(cards))

	for _, card := range cards {
		keepRefs = append(keepRefs, card.ID)
		if err := r.applyCard(ctx, card, listNames, result); err != nil {
			r.logger.Warn("card upsert failed", "card_id", card.ID, "error", err)
			result.SaveFailures++
		}
	}

	if result.SaveFailures > 0 {
		r.logger.Warn("skipping deletion sweep after upsert failures",
			"failures", result.SaveFailures,
		)
	} else {
		deleted, err := r.tasks.DeleteAbsent(ctx, keepRefs)
		if err != nil {
			return nil, fmt.Errorf("deleting absent tasks: %w", err)
		}
		result.Deleted = deleted
	}

	r.logger.Info("reconciliation pass completed",
		"cards", len(cards),
		"created", result.Created,
		"updated", result.Updated,
		"completed", result.Completed,
		"reopened", result.Reopened,
		"deleted", result.Deleted,
		"folded", result.Folded,
		"enrichment_failures", result.EnrichmentFailures,
		"save_failures", result.SaveFailures,
	)
	return result, nil
}

func (r *Reconciler) applyCard(ctx context.Context, card board.CardSnapshot, listNames map[string]string, result *Result) error {
	t, err := r.tasks.FindByExternalRef(ctx, card.ID)
	created := false
	if errors.Is(err, domain.ErrTaskNotFound) {
		t = domain.NewTask(card.ID, card.Name)
		created = true
	} else if err != nil {
		return fmt.Errorf("loading task %s: %w", card.ID, err)
	}

	// External state wins for content fields.
	t.Title = card.Name
	t.Description = card.Desc
	t.Deadline = card.Due
	t.Touch()

	if done, ok := r.resolveDone(ctx, card.ListID, listNames, result); ok {
		if done {
			if t.Complete(r.now()) {
				result.Completed++
			}
		} else if t.Reopen() {
			result.Reopened++
		}
	}

	r.applyAssignment(ctx, card, t, result)

	if err := r.tasks.Save(ctx, t); err != nil {
		return fmt.Errorf("saving task %s: %w", card.ID, err)
	}
	if created {
		result.Created++
	} else {
		result.Updated++
	}

	if t.Completed && !t.ScoreCounted {
		folded, err := r.scorer.Fold(ctx, t)
		if err != nil {
			// Scoped to this task; the rest of the pass continues.
			r.logger.Error("score fold failed",
				"external_ref", t.ExternalRef,
				"error", err,
			)
		} else if folded {
			result.Folded++
		}
	}

	return nil
}

// resolveDone classifies the card's list. The second return is false when
// the list could not be resolved; completion state is then left untouched.
func (r *Reconciler) resolveDone(ctx context.Context, listID string, listNames map[string]string, result *Result) (bool, bool) {
	if listID == "" {
		return false, false
	}

	name, ok := listNames[listID]
	if !ok {
		info, err := r.client.GetList(ctx, listID)
		if err != nil {
			r.logger.Warn("list lookup failed", "list_id", listID, "error", err)
			result.EnrichmentFailures++
			return false, false
		}
		name = info.Name
		listNames[listID] = name
	}

	return strings.EqualFold(name, r.config.DoneListName), true
}

// applyAssignment tracks the first card member only; multi-assignee cards
// are not supported. A profile lookup failure still stores the raw id.
func (r *Reconciler) applyAssignment(ctx context.Context, card board.CardSnapshot, t *domain.Task, result *Result) {
	if len(card.MemberIDs) == 0 {
		return
	}
	memberRef := card.MemberIDs[0]

	if profile, ok := r.profiles.Get(ctx, memberRef); ok {
		t.Assign(memberRef, profile.FullName, profile.Username)
		return
	}

	profile, err := r.client.GetMember(ctx, memberRef)
	if err != nil {
		r.logger.Warn("member lookup failed", "member_id", memberRef, "error", err)
		result.EnrichmentFailures++
		t.Assign(memberRef, t.MemberName, t.MemberHandle)
		return
	}

	r.profiles.Set(ctx, profile)
	t.Assign(memberRef, profile.FullName, profile.Username)
}
