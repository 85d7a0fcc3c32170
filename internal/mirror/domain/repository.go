package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrMemberNotFound    = errors.New("member not found")
	ErrOptimisticLocking = errors.New("optimistic locking conflict")
)

// NotificationKind identifies one of the independent at-most-once
// notification flags on a task.
type NotificationKind int

const (
	NotifyAssignment NotificationKind = iota
	NotifyOverdue
	NotifyEscalation
	NotifyCompletion
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyAssignment:
		return "assignment"
	case NotifyOverdue:
		return "overdue"
	case NotifyEscalation:
		return "escalation"
	case NotifyCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// TaskRepository persists mirrored tasks.
//
// Save writes the mirror fields (title, description, deadline, assignment,
// completion state) under optimistic locking but never touches the
// notification flags or score_counted: those change only through the
// conditional writes below, so a concurrent claim is never overwritten by
// a reconciliation save.
type TaskRepository interface {
	Save(ctx context.Context, t *Task) error
	FindByExternalRef(ctx context.Context, ref string) (*Task, error)
	FindAll(ctx context.Context) ([]*Task, error)

	// Dispatcher scans. Each returns tasks matching one notification
	// condition whose flag is still false.
	FindAssignmentPending(ctx context.Context) ([]*Task, error)
	FindOverdue(ctx context.Context, asOf time.Time) ([]*Task, error)
	FindEscalated(ctx context.Context, cutoff time.Time) ([]*Task, error)
	FindCompletionPending(ctx context.Context) ([]*Task, error)

	// DeleteAbsent removes every task whose external reference is not in
	// keepRefs and returns the number of rows deleted. Callers must pass
	// the full card set of the pass; see Reconciler.
	DeleteAbsent(ctx context.Context, keepRefs []string) (int, error)

	// MarkNotified flips one notification flag from false to true and
	// reports whether this call claimed it. ClearNotified releases a claim
	// after a failed send so the next scan retries.
	MarkNotified(ctx context.Context, id uuid.UUID, kind NotificationKind) (bool, error)
	ClearNotified(ctx context.Context, id uuid.UUID, kind NotificationKind) error

	// MarkScoreCounted flips score_counted from false to true and reports
	// whether this call claimed the fold. ClearScoreCounted releases the
	// claim when the member aggregate could not be updated.
	MarkScoreCounted(ctx context.Context, id uuid.UUID) (bool, error)
	ClearScoreCounted(ctx context.Context, id uuid.UUID) error
}

// MemberRepository persists member aggregates. Save inserts a new member
// or updates an existing one; updates carry an optimistic version check
// and return ErrOptimisticLocking on conflict so concurrent folds for the
// same member are serialized by retry.
type MemberRepository interface {
	Save(ctx context.Context, m *Member) error
	FindByRef(ctx context.Context, ref string) (*Member, error)
	FindAll(ctx context.Context) ([]*Member, error)
}
