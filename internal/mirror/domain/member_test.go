package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMember(t *testing.T) {
	m := NewMember("member-1")

	require.NotNil(t, m)
	assert.Equal(t, "member-1", m.Ref)
	assert.Nil(t, m.HistoricalScore)
	assert.Equal(t, 0, m.TotalTasksCounted)
}

func TestMember_SetContact(t *testing.T) {
	t.Run("sets email and display name", func(t *testing.T) {
		m := NewMember("member-1")

		m.SetContact("ada@example.com", "Ada Lovelace")

		assert.Equal(t, "ada@example.com", m.Email)
		assert.Equal(t, "Ada Lovelace", m.DisplayName)
	})

	t.Run("empty values keep the existing fields", func(t *testing.T) {
		m := NewMember("member-1")
		m.SetContact("ada@example.com", "Ada Lovelace")

		m.SetContact("", "Countess of Lovelace")
		assert.Equal(t, "ada@example.com", m.Email)
		assert.Equal(t, "Countess of Lovelace", m.DisplayName)

		m.SetContact("countess@example.com", "")
		assert.Equal(t, "countess@example.com", m.Email)
		assert.Equal(t, "Countess of Lovelace", m.DisplayName)
	})
}

func TestMember_Fold(t *testing.T) {
	t.Run("first fold sets the score directly", func(t *testing.T) {
		m := NewMember("member-1")

		m.Fold(8.5)

		require.NotNil(t, m.HistoricalScore)
		assert.Equal(t, 8.5, *m.HistoricalScore)
		assert.Equal(t, 1, m.TotalTasksCounted)
	})

	t.Run("subsequent folds update the running mean", func(t *testing.T) {
		m := NewMember("member-1")

		m.Fold(8.5)
		m.Fold(10.0)

		require.NotNil(t, m.HistoricalScore)
		assert.Equal(t, 9.25, *m.HistoricalScore)
		assert.Equal(t, 2, m.TotalTasksCounted)
	})

	t.Run("mean is rounded to two decimals", func(t *testing.T) {
		m := NewMember("member-1")

		m.Fold(10.0)
		m.Fold(10.0)
		m.Fold(9.0)

		require.NotNil(t, m.HistoricalScore)
		// (10+10+9)/3 = 9.666... rounds to 9.67
		assert.Equal(t, 9.67, *m.HistoricalScore)
		assert.Equal(t, 3, m.TotalTasksCounted)
	})

	t.Run("incremental mean uses the rounded previous value", func(t *testing.T) {
		m := NewMember("member-1")
		prev := 9.67
		m.HistoricalScore = &prev
		m.TotalTasksCounted = 3

		m.Fold(0)

		// (9.67*3 + 0) / 4 = 7.2525 rounds to 7.25
		assert.Equal(t, 7.25, *m.HistoricalScore)
		assert.Equal(t, 4, m.TotalTasksCounted)
	})
}
