package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
	"github.com/google/uuid"
)

// SQLiteTaskRepository implements domain.TaskRepository using SQLite.
type SQLiteTaskRepository struct {
	db *sql.DB
}

// NewSQLiteTaskRepository creates a new SQLite task repository.
func NewSQLiteTaskRepository(db *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{db: db}
}

// Save persists the mirror fields of a task. Notification flags and
// score_counted are excluded: they change only through the conditional
// writes below.
func (r *SQLiteTaskRepository) Save(ctx context.Context, t *domain.Task) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, deadline = ?,
			member_ref = ?, member_name = ?, member_handle = ?,
			completed = ?, completed_on = ?, score_override = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		t.Title, t.Description, nullTime(t.Deadline),
		t.MemberRef, t.MemberName, t.MemberHandle,
		t.Completed, nullTime(t.CompletedOn), nullFloat(t.ScoreOverride),
		formatTime(t.UpdatedAt),
		t.ID.String(), t.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		t.Version++
		return nil
	}

	// Persisted rows always carry version >= 1. Two passes racing on the
	// same card's first observation both take this path; the loser's
	// insert hits the unique external_ref and reports a conflict instead
	// of clobbering the winner.
	result, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, external_ref, title, description, deadline,
			member_ref, member_name, member_handle,
			completed, completed_on, score_override,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT DO NOTHING`,
		t.ID.String(), t.ExternalRef, t.Title, t.Description, nullTime(t.Deadline),
		t.MemberRef, t.MemberName, t.MemberHandle,
		t.Completed, nullTime(t.CompletedOn), nullFloat(t.ScoreOverride),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
	)
	if err != nil {
		return err
	}
	affected, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOptimisticLocking
	}
	t.Version = 1
	return nil
}

// FindByExternalRef retrieves a task by its external card reference.
func (r *SQLiteTaskRepository) FindByExternalRef(ctx context.Context, ref string) (*domain.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE external_ref = ?`, ref)
	t, err := scanSQLiteTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return t, err
}

// FindAll retrieves every task in the mirror.
func (r *SQLiteTaskRepository) FindAll(ctx context.Context) ([]*domain.Task, error) {
	return r.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at`)
}

// FindAssignmentPending returns open tasks whose assignment notice has not
// been sent.
func (r *SQLiteTaskRepository) FindAssignmentPending(ctx context.Context) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE completed = 0 AND assignment_notified = 0 AND member_ref != ''`)
}

// FindOverdue returns open tasks past their deadline whose overdue notice
// has not been sent.
func (r *SQLiteTaskRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE completed = 0 AND overdue_notified = 0
		   AND deadline IS NOT NULL AND deadline < ?`,
		formatTime(asOf))
}

// FindEscalated returns open tasks whose deadline lies before the cutoff
// and whose escalation notice has not been sent.
func (r *SQLiteTaskRepository) FindEscalated(ctx context.Context, cutoff time.Time) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE completed = 0 AND escalation_notified = 0
		   AND deadline IS NOT NULL AND deadline < ?`,
		formatTime(cutoff))
}

// FindCompletionPending returns completed tasks whose completion notice
// has not been sent.
func (r *SQLiteTaskRepository) FindCompletionPending(ctx context.Context) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE completed = 1 AND completion_notified = 0`)
}

// DeleteAbsent removes tasks whose external reference is not in keepRefs.
func (r *SQLiteTaskRepository) DeleteAbsent(ctx context.Context, keepRefs []string) (int, error) {
	query := `DELETE FROM tasks`
	args := make([]any, 0, len(keepRefs))
	if len(keepRefs) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepRefs)), ",")
		query += ` WHERE external_ref NOT IN (` + placeholders + `)`
		for _, ref := range keepRefs {
			args = append(args, ref)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	return int(affected), err
}

// MarkNotified flips one notification flag from false to true.
func (r *SQLiteTaskRepository) MarkNotified(ctx context.Context, id uuid.UUID, kind domain.NotificationKind) (bool, error) {
	col, err := flagColumn(kind)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET `+col+` = 1, updated_at = ? WHERE id = ? AND `+col+` = 0`,
		formatTime(time.Now().UTC()), id.String())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// ClearNotified resets one notification flag after a failed send.
func (r *SQLiteTaskRepository) ClearNotified(ctx context.Context, id uuid.UUID, kind domain.NotificationKind) error {
	col, err := flagColumn(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE tasks SET `+col+` = 0, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id.String())
	return err
}

// MarkScoreCounted flips score_counted from false to true.
func (r *SQLiteTaskRepository) MarkScoreCounted(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET score_counted = 1, updated_at = ? WHERE id = ? AND score_counted = 0`,
		formatTime(time.Now().UTC()), id.String())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	return affected > 0, err
}

// ClearScoreCounted releases a fold claim.
func (r *SQLiteTaskRepository) ClearScoreCounted(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET score_counted = 0, updated_at = ? WHERE id = ?`,
		formatTime(time.Now().UTC()), id.String())
	return err
}

func (r *SQLiteTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTask(row rowScanner) (*domain.Task, error) {
	var (
		t                     domain.Task
		id                    string
		deadline, completedOn sql.NullString
		scoreOverride         sql.NullFloat64
		createdAt, updatedAt  string
	)

	err := row.Scan(
		&id, &t.ExternalRef, &t.Title, &t.Description, &deadline,
		&t.MemberRef, &t.MemberName, &t.MemberHandle,
		&t.Completed, &completedOn, &scoreOverride, &t.ScoreCounted,
		&t.AssignmentNotified, &t.OverdueNotified, &t.EscalationNotified, &t.CompletionNotified,
		&t.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid task id: %w", err)
	}
	if t.Deadline, err = parseNullTime(deadline); err != nil {
		return nil, fmt.Errorf("invalid deadline: %w", err)
	}
	if t.CompletedOn, err = parseNullTime(completedOn); err != nil {
		return nil, fmt.Errorf("invalid completed_on: %w", err)
	}
	if scoreOverride.Valid {
		t.ScoreOverride = &scoreOverride.Float64
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &t, nil
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

func nullTime(ts *time.Time) sql.NullString {
	if ts == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*ts), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}
