package persistence

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresMemberRepository implements domain.MemberRepository using
// PostgreSQL.
type PostgresMemberRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMemberRepository creates a new PostgreSQL member repository.
func NewPostgresMemberRepository(pool *pgxpool.Pool) *PostgresMemberRepository {
	return &PostgresMemberRepository{pool: pool}
}

// Save persists a member under optimistic locking. Persisted rows always
// carry version >= 1; a racing first save of the same ref hits the insert
// conflict and reports domain.ErrOptimisticLocking so the caller reloads.
func (r *PostgresMemberRepository) Save(ctx context.Context, m *domain.Member) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE members SET
			email = $1, display_name = $2,
			historical_score = $3, total_tasks_counted = $4,
			version = version + 1, updated_at = $5
		WHERE ref = $6 AND version = $7`,
		m.Email, m.DisplayName,
		m.HistoricalScore, m.TotalTasksCounted,
		m.UpdatedAt,
		m.Ref, m.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		m.Version++
		return nil
	}

	tag, err = r.pool.Exec(ctx, `
		INSERT INTO members (
			ref, email, display_name, historical_score, total_tasks_counted,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		ON CONFLICT (ref) DO NOTHING`,
		m.Ref, m.Email, m.DisplayName,
		m.HistoricalScore, m.TotalTasksCounted,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOptimisticLocking
	}
	m.Version = 1
	return nil
}

// FindByRef retrieves a member by external reference.
func (r *PostgresMemberRepository) FindByRef(ctx context.Context, ref string) (*domain.Member, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT ref, email, display_name, historical_score, total_tasks_counted,
		       version, created_at, updated_at
		FROM members WHERE ref = $1`, ref)

	m, err := scanPostgresMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	return m, err
}

// FindAll retrieves every member.
func (r *PostgresMemberRepository) FindAll(ctx context.Context) ([]*domain.Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ref, email, display_name, historical_score, total_tasks_counted,
		       version, created_at, updated_at
		FROM members ORDER BY ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m, err := scanPostgresMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanPostgresMember(row pgx.Row) (*domain.Member, error) {
	var m domain.Member
	err := row.Scan(
		&m.Ref, &m.Email, &m.DisplayName, &m.HistoricalScore, &m.TotalTasksCounted,
		&m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
