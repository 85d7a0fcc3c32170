package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask(t *testing.T) {
	task := NewTask("card-1", "Write report")

	require.NotNil(t, task)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", task.ID.String())
	assert.Equal(t, "card-1", task.ExternalRef)
	assert.Equal(t, "Write report", task.Title)
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedOn)
	assert.False(t, task.ScoreCounted)
}

func TestTask_Complete(t *testing.T) {
	t.Run("marks completion day in UTC", func(t *testing.T) {
		task := NewTask("card-1", "Write report")
		on := time.Date(2026, 3, 14, 23, 45, 0, 0, time.UTC)

		changed := task.Complete(on)

		assert.True(t, changed)
		assert.True(t, task.Completed)
		require.NotNil(t, task.CompletedOn)
		assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), *task.CompletedOn)
	})

	t.Run("is idempotent", func(t *testing.T) {
		task := NewTask("card-1", "Write report")
		first := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		task.Complete(first)

		changed := task.Complete(first.AddDate(0, 0, 3))

		assert.False(t, changed)
		assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), *task.CompletedOn)
	})
}

func TestTask_Reopen(t *testing.T) {
	t.Run("clears completion state", func(t *testing.T) {
		task := NewTask("card-1", "Write report")
		task.Complete(time.Now())
		task.ScoreCounted = true

		changed := task.Reopen()

		assert.True(t, changed)
		assert.False(t, task.Completed)
		assert.Nil(t, task.CompletedOn)
		// A reopened task keeps its fold state; the aggregate is never
		// rolled back.
		assert.True(t, task.ScoreCounted)
	})

	t.Run("no-op on open task", func(t *testing.T) {
		task := NewTask("card-1", "Write report")
		assert.False(t, task.Reopen())
	})
}

func TestTask_Assign(t *testing.T) {
	task := NewTask("card-1", "Write report")

	task.Assign("member-9", "Ada Lovelace", "ada")

	assert.Equal(t, "member-9", task.MemberRef)
	assert.Equal(t, "Ada Lovelace", task.MemberName)
	assert.Equal(t, "ada", task.MemberHandle)
}

func TestTask_SetScoreOverride(t *testing.T) {
	task := NewTask("card-1", "Write report")
	task.ScoreCounted = true

	task.SetScoreOverride(7.5)

	require.NotNil(t, task.ScoreOverride)
	assert.Equal(t, 7.5, *task.ScoreOverride)
	// An override re-arms the fold so it counts as a fresh scoring event.
	assert.False(t, task.ScoreCounted)
}

func TestTask_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	tests := []struct {
		name      string
		deadline  *time.Time
		completed bool
		expected  bool
	}{
		{"open past deadline", &past, false, true},
		{"open future deadline", &future, false, false},
		{"no deadline", nil, false, false},
		{"completed past deadline", &past, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := NewTask("card-1", "Write report")
			task.Deadline = tt.deadline
			task.Completed = tt.completed
			assert.Equal(t, tt.expected, task.IsOverdue(now))
		})
	}
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2026, 3, 15, 2, 30, 0, 0, loc)

	day := DateOf(ts)

	// 02:30 UTC+5 is still the previous day in UTC.
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), day)
}
