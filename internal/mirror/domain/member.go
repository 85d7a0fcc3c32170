package domain

import (
	"math"
	"time"
)

// Member is an external board member with a derived performance score.
// HistoricalScore is the running mean of every per-task score folded in so
// far; it is never recomputed from scratch.
type Member struct {
	Ref         string // external member id, unique
	Email       string
	DisplayName string

	HistoricalScore   *float64
	TotalTasksCounted int

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewMember creates a member record, typically lazily on first fold or
// first profile fetch.
func NewMember(ref string) *Member {
	now := time.Now().UTC()
	return &Member{
		Ref:       ref,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetContact updates the member's contact details. Empty values leave
// the current field untouched so email and display name can be set
// independently.
func (m *Member) SetContact(email, displayName string) {
	if email != "" {
		m.Email = email
	}
	if displayName != "" {
		m.DisplayName = displayName
	}
	m.UpdatedAt = time.Now().UTC()
}

// Fold incorporates one per-task score into the running mean, rounded to
// two decimal places. The aggregate is one-directional: scores are only
// ever added, never subtracted.
func (m *Member) Fold(score float64) {
	if m.HistoricalScore == nil {
		m.HistoricalScore = &score
		m.TotalTasksCounted = 1
		m.UpdatedAt = time.Now().UTC()
		return
	}

	mean := (*m.HistoricalScore*float64(m.TotalTasksCounted) + score) / float64(m.TotalTasksCounted+1)
	mean = math.Round(mean*100) / 100
	m.HistoricalScore = &mean
	m.TotalTasksCounted++
	m.UpdatedAt = time.Now().UTC()
}
