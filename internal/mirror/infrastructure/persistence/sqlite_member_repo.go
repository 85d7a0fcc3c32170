package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

// SQLiteMemberRepository implements domain.MemberRepository using SQLite.
type SQLiteMemberRepository struct {
	db *sql.DB
}

// NewSQLiteMemberRepository creates a new SQLite member repository.
func NewSQLiteMemberRepository(db *sql.DB) *SQLiteMemberRepository {
	return &SQLiteMemberRepository{db: db}
}

// Save persists a member under optimistic locking. A version conflict
// returns domain.ErrOptimisticLocking so the caller can reload and retry.
//
// Persisted rows always carry version >= 1: a fresh aggregate takes the
// insert path, and an insert that finds the row already there (two passes
// racing on the same member's first fold) reports a conflict instead of
// letting a version-0 update overwrite the winner.
func (r *SQLiteMemberRepository) Save(ctx context.Context, m *domain.Member) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE members SET
			email = ?, display_name = ?,
			historical_score = ?, total_tasks_counted = ?,
			version = version + 1, updated_at = ?
		WHERE ref = ? AND version = ?`,
		m.Email, m.DisplayName,
		nullFloat(m.HistoricalScore), m.TotalTasksCounted,
		formatTime(m.UpdatedAt),
		m.Ref, m.Version,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		m.Version++
		return nil
	}

	result, err = r.db.ExecContext(ctx, `
		INSERT INTO members (
			ref, email, display_name, historical_score, total_tasks_counted,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(ref) DO NOTHING`,
		m.Ref, m.Email, m.DisplayName,
		nullFloat(m.HistoricalScore), m.TotalTasksCounted,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt),
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
	m.Version = 1
	return nil
}

// FindByRef retrieves a member by external reference.
func (r *SQLiteMemberRepository) FindByRef(ctx context.Context, ref string) (*domain.Member, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE ref = ?`, ref)
	m, err := scanSQLiteMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	return m, err
}

// FindAll retrieves every member.
func (r *SQLiteMemberRepository) FindAll(ctx context.Context) ([]*domain.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members ORDER BY ref`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		m, err := scanSQLiteMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func scanSQLiteMember(row rowScanner) (*domain.Member, error) {
	var (
		m                    domain.Member
		score                sql.NullFloat64
		createdAt, updatedAt string
	)

	err := row.Scan(
		&m.Ref, &m.Email, &m.DisplayName, &score, &m.TotalTasksCounted,
		&m.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		m.HistoricalScore = &score.Float64
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if m.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &m, nil
}
