package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/boardsync/internal/mirror/domain"
)

func TestMemberDirectory_SetContact(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the member on first contact", func(t *testing.T) {
		members := new(mockMemberRepo)
		members.On("FindByRef", ctx, "member-1").Return(nil, domain.ErrMemberNotFound)
		members.On("Save", ctx, mock.MatchedBy(func(m *domain.Member) bool {
			return m.Ref == "member-1" && m.Email == "ada@example.com" && m.DisplayName == "Ada Lovelace"
		})).Return(nil)

		dir := NewMemberDirectory(members, nil)
		member, err := dir.SetContact(ctx, "member-1", "ada@example.com", "Ada Lovelace")

		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", member.Email)
		members.AssertExpectations(t)
	})

	t.Run("updates an existing member without touching the score", func(t *testing.T) {
		existing := domain.NewMember("member-1")
		existing.Fold(8.5)

		members := new(mockMemberRepo)
		members.On("FindByRef", ctx, "member-1").Return(existing, nil)
		members.On("Save", ctx, mock.MatchedBy(func(m *domain.Member) bool {
			return m.Email == "ada@example.com" && m.TotalTasksCounted == 1 && *m.HistoricalScore == 8.5
		})).Return(nil)

		dir := NewMemberDirectory(members, nil)
		_, err := dir.SetContact(ctx, "member-1", "ada@example.com", "")

		require.NoError(t, err)
		members.AssertExpectations(t)
	})

	t.Run("retries on conflict with a concurrent fold", func(t *testing.T) {
		members := new(mockMemberRepo)
		members.On("FindByRef", ctx, "member-1").Return(nil, domain.ErrMemberNotFound)
		members.On("Save", ctx, mock.Anything).Return(domain.ErrOptimisticLocking).Once()
		members.On("Save", ctx, mock.Anything).Return(nil).Once()

		dir := NewMemberDirectory(members, nil)
		_, err := dir.SetContact(ctx, "member-1", "ada@example.com", "")

		require.NoError(t, err)
		members.AssertExpectations(t)
	})

	t.Run("empty ref is rejected", func(t *testing.T) {
		dir := NewMemberDirectory(new(mockMemberRepo), nil)

		_, err := dir.SetContact(ctx, "", "ada@example.com", "")

		assert.Error(t, err)
	})
}
