// Package domain holds the shared data model for the board mirror: tasks
// copied from external board cards and members carrying a running score.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task mirrors one external board card. Title, description, deadline and
// assignment are overwritten from the board on every reconciliation pass;
// the board is authoritative for those fields.
type Task struct {
	ID          uuid.UUID
	ExternalRef string
	Title       string
	Description string
	Deadline    *time.Time

	// Assignment. MemberRef is the external member id of the first card
	// member; the cached name and handle may be empty when profile
	// enrichment failed.
	MemberRef    string
	MemberName   string
	MemberHandle string

	Completed   bool
	CompletedOn *time.Time

	// ScoreOverride takes precedence over the computed delay score.
	ScoreOverride *float64
	// ScoreCounted is set once this task's score has been folded into its
	// member's aggregate. It is only ever set through a conditional write.
	ScoreCounted bool

	AssignmentNotified bool
	OverdueNotified    bool
	EscalationNotified bool
	CompletionNotified bool

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask creates a task for a card seen for the first time.
func NewTask(externalRef, title string) *Task {
	now := time.Now().UTC()
	return &Task{
		ID:          uuid.New(),
		ExternalRef: externalRef,
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Touch updates the modification timestamp.
func (t *Task) Touch() {
	t.UpdatedAt = time.Now().UTC()
}

// Complete marks the task completed as of the given day. Returns false if
// the task was already completed.
func (t *Task) Complete(on time.Time) bool {
	if t.Completed {
		return false
	}
	day := DateOf(on)
	t.Completed = true
	t.CompletedOn = &day
	t.Touch()
	return true
}

// Reopen clears the completed state after a card moved out of the done
// list. Any score already folded for this task stays folded.
func (t *Task) Reopen() bool {
	if !t.Completed {
		return false
	}
	t.Completed = false
	t.CompletedOn = nil
	t.Touch()
	return true
}

// Assign sets the external member reference and cached profile fields.
func (t *Task) Assign(memberRef, name, handle string) {
	t.MemberRef = memberRef
	t.MemberName = name
	t.MemberHandle = handle
	t.Touch()
}

// SetScoreOverride records a manual score and re-arms the fold so the
// override is counted as a fresh scoring event. The previous contribution
// is never subtracted from the member aggregate.
func (t *Task) SetScoreOverride(score float64) {
	t.ScoreOverride = &score
	t.ScoreCounted = false
	t.Touch()
}

// IsOverdue reports whether the task is open with a deadline in the past.
func (t *Task) IsOverdue(now time.Time) bool {
	return !t.Completed && t.Deadline != nil && t.Deadline.Before(now)
}

// DateOf truncates a timestamp to its UTC calendar day.
func DateOf(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
