package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/boardsync/internal/notify/activity"
)

type stubActivity struct {
	entries []activity.Entry
	err     error
	queried time.Time
}

func (s *stubActivity) EntriesByDate(ctx context.Context, day time.Time) ([]activity.Entry, error) {
	s.queried = day
	return s.entries, s.err
}

func summaryConfig() SummaryConfig {
	return SummaryConfig{
		Persona:         Persona{BotName: "Douze-bot", SupervisorName: "Alex"},
		SupervisorEmail: "supervisor@example.com",
		FromAddress:     "bot@example.com",
	}
}

func TestDailySummary_Run(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)

	t.Run("summarizes yesterday and mails the supervisor", func(t *testing.T) {
		source := &stubActivity{entries: []activity.Entry{
			{Date: "2026-03-14", Description: "Closed the quarterly report"},
		}}
		sender := &stubSender{}
		s := NewDailySummary(source, &stubComposer{}, sender, summaryConfig(), nil).
			WithClock(func() time.Time { return now })

		err := s.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, now.AddDate(0, 0, -1), source.queried)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, "Daily Work Summary for 2026-03-14", sender.sent[0].subject)
		assert.Equal(t, []string{"supervisor@example.com"}, sender.sent[0].to)
	})

	t.Run("no entries means no mail", func(t *testing.T) {
		sender := &stubSender{}
		s := NewDailySummary(&stubActivity{}, &stubComposer{}, sender, summaryConfig(), nil).
			WithClock(func() time.Time { return now })

		err := s.Run(ctx)

		require.NoError(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("fetch failure aborts the run", func(t *testing.T) {
		source := &stubActivity{err: errors.New("service down")}
		sender := &stubSender{}
		s := NewDailySummary(source, &stubComposer{}, sender, summaryConfig(), nil).
			WithClock(func() time.Time { return now })

		err := s.Run(ctx)

		require.Error(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("nil source is a logged no-op", func(t *testing.T) {
		sender := &stubSender{}
		s := NewDailySummary(nil, &stubComposer{}, sender, summaryConfig(), nil)

		err := s.Run(ctx)

		require.NoError(t, err)
		assert.Empty(t, sender.sent)
	})
}
