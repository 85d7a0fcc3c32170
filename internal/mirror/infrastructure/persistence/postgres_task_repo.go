package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgTaskColumns = `id::text, external_ref, title, description, deadline,
	member_ref, member_name, member_handle,
	completed, completed_on, score_override, score_counted,
	assignment_notified, overdue_notified, escalation_notified, completion_notified,
	version, created_at, updated_at`

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL.
type PostgresTaskRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTaskRepository creates a new PostgreSQL task repository.
func NewPostgresTaskRepository(pool *pgxpool.Pool) *PostgresTaskRepository {
	return &PostgresTaskRepository{pool: pool}
}

// Save persists the mirror fields of a task; see the repository contract
// for why notification flags and score_counted are excluded.
func (r *PostgresTaskRepository) Save(ctx context.Context, t *domain.Task) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET
			title = $1, description = $2, deadline = $3,
			member_ref = $4, member_name = $5, member_handle = $6,
			completed = $7, completed_on = $8, score_override = $9,
			version = version + 1, updated_at = $10
		WHERE id = $11 AND version = $12`,
		t.Title, t.Description, t.Deadline,
		t.MemberRef, t.MemberName, t.MemberHandle,
		t.Completed, t.CompletedOn, t.ScoreOverride,
		t.UpdatedAt,
		t.ID.String(), t.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		t.Version++
		return nil
	}

	// Persisted rows always carry version >= 1; a racing first save of the
	// same card hits the insert conflict and reports it to the caller.
	tag, err = r.pool.Exec(ctx, `
		INSERT INTO tasks (
			id, external_ref, title, description, deadline,
			member_ref, member_name, member_handle,
			completed, completed_on, score_override,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, $12, $13)
		ON CONFLICT DO NOTHING`,
		t.ID.String(), t.ExternalRef, t.Title, t.Description, t.Deadline,
		t.MemberRef, t.MemberName, t.MemberHandle,
		t.Completed, t.CompletedOn, t.ScoreOverride,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptimisticLocking
	}
	t.Version = 1
	return nil
}

// FindByExternalRef retrieves a task by its external card reference.
func (r *PostgresTaskRepository) FindByExternalRef(ctx context.Context, ref string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks WHERE external_ref = $1`, ref)
	t, err := scanPostgresTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	return t, err
}

// FindAll retrieves every task in the mirror.
func (r *PostgresTaskRepository) FindAll(ctx context.Context) ([]*domain.Task, error) {
	return r.queryTasks(ctx, `SELECT `+pgTaskColumns+` FROM tasks ORDER BY created_at`)
}

// FindAssignmentPending returns open tasks whose assignment notice has not
// been sent.
func (r *PostgresTaskRepository) FindAssignmentPending(ctx context.Context) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE NOT completed AND NOT assignment_notified AND member_ref != ''`)
}

// FindOverdue returns open tasks past their deadline whose overdue notice
// has not been sent.
func (r *PostgresTaskRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE NOT completed AND NOT overdue_notified
		   AND deadline IS NOT NULL AND deadline < $1`, asOf)
}

// FindEscalated returns open tasks whose deadline lies before the cutoff
// and whose escalation notice has not been sent.
func (r *PostgresTaskRepository) FindEscalated(ctx context.Context, cutoff time.Time) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE NOT completed AND NOT escalation_notified
		   AND deadline IS NOT NULL AND deadline < $1`, cutoff)
}

// FindCompletionPending returns completed tasks whose completion notice
// has not been sent.
func (r *PostgresTaskRepository) FindCompletionPending(ctx context.Context) ([]*domain.Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+pgTaskColumns+` FROM tasks
		 WHERE completed AND NOT completion_notified`)
}

// DeleteAbsent removes tasks whose external reference is not in keepRefs.
func (r *PostgresTaskRepository) DeleteAbsent(ctx context.Context, keepRefs []string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM tasks WHERE external_ref != ALL($1)`, keepRefs)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// MarkNotified flips one notification flag from false to true.
func (r *PostgresTaskRepository) MarkNotified(ctx context.Context, id uuid.UUID, kind domain.NotificationKind) (bool, error) {
	col, err := flagColumn(kind)
	if err != nil {
		return false, err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET `+col+` = TRUE, updated_at = NOW() WHERE id = $1 AND NOT `+col,
		id.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClearNotified resets one notification flag after a failed send.
func (r *PostgresTaskRepository) ClearNotified(ctx context.Context, id uuid.UUID, kind domain.NotificationKind) error {
	col, err := flagColumn(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE tasks SET `+col+` = FALSE, updated_at = NOW() WHERE id = $1`,
		id.String())
	return err
}

// MarkScoreCounted flips score_counted from false to true.
func (r *PostgresTaskRepository) MarkScoreCounted(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET score_counted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT score_counted`,
		id.String())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ClearScoreCounted releases a fold claim.
func (r *PostgresTaskRepository) ClearScoreCounted(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tasks SET score_counted = FALSE, updated_at = NOW() WHERE id = $1`,
		id.String())
	return err
}

func (r *PostgresTaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanPostgresTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanPostgresTask(row pgx.Row) (*domain.Task, error) {
	var (
		t  domain.Task
		id string
	)

	err := row.Scan(
		&id, &t.ExternalRef, &t.Title, &t.Description, &t.Deadline,
		&t.MemberRef, &t.MemberName, &t.MemberHandle,
		&t.Completed, &t.CompletedOn, &t.ScoreOverride, &t.ScoreCounted,
		&t.AssignmentNotified, &t.OverdueNotified, &t.EscalationNotified, &t.CompletionNotified,
		&t.Version, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid task id: %w", err)
	}
	return &t, nil
}
