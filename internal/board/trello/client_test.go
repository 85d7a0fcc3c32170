package trello

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{Key: "test-key", Token: "test-token", BoardID: "board-1"}
	return NewClientWithBaseURL(cfg, nil, server.URL)
}

func TestClient_ListCards(t *testing.T) {
	ctx := context.Background()

	t.Run("parses cards and credentials travel as query params", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/boards/board-1/cards", r.URL.Path)
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			assert.Equal(t, "test-token", r.URL.Query().Get("token"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"id":"card-1","name":"Write report","desc":"quarterly numbers","due":"2026-03-10T17:00:00.000Z","idList":"list-1","idMembers":["member-1"]},
				{"id":"card-2","name":"Review budget","desc":"","due":null,"idList":"list-1","idMembers":[]}
			]`))
		})

		cards, err := client.ListCards(ctx)

		require.NoError(t, err)
		require.Len(t, cards, 2)
		assert.Equal(t, "card-1", cards[0].ID)
		assert.Equal(t, "Write report", cards[0].Name)
		require.NotNil(t, cards[0].Due)
		assert.Equal(t, 2026, cards[0].Due.Year())
		assert.Equal(t, []string{"member-1"}, cards[0].MemberIDs)
		assert.Nil(t, cards[1].Due)
	})

	t.Run("non-2xx surfaces ErrFetch", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid token", http.StatusUnauthorized)
		})

		_, err := client.ListCards(ctx)

		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("malformed body surfaces ErrFetch", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		})

		_, err := client.ListCards(ctx)

		assert.ErrorIs(t, err, ErrFetch)
	})
}

func TestClient_GetList(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lists/list-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"list-1","name":"Done"}`))
	})

	info, err := client.GetList(context.Background(), "list-1")

	require.NoError(t, err)
	assert.Equal(t, "Done", info.Name)
}

func TestClient_GetMember(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/members/member-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"member-1","fullName":"Ada Lovelace","username":"ada"}`))
	})

	profile, err := client.GetMember(context.Background(), "member-1")

	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", profile.FullName)
	assert.Equal(t, "ada", profile.Username)
}

func TestClient_EnsureWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("creates when no webhook matches", func(t *testing.T) {
		created := false
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet:
				assert.Equal(t, "/tokens/test-token/webhooks", r.URL.Path)
				_, _ = w.Write([]byte(`[{"id":"wh-1","callbackURL":"https://other.example.com/hook","idModel":"board-1"}]`))
			case r.Method == http.MethodPost:
				created = true
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "https://boardsync.example.com/trello-webhook", r.PostForm.Get("callbackURL"))
				assert.Equal(t, "board-1", r.PostForm.Get("idModel"))
				assert.Equal(t, "test-key", r.PostForm.Get("key"))
				_, _ = w.Write([]byte(`{"id":"wh-2","callbackURL":"https://boardsync.example.com/trello-webhook","idModel":"board-1"}`))
			}
		})

		err := client.EnsureWebhook(ctx, "https://boardsync.example.com/trello-webhook")

		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("idempotent when the webhook already exists", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`[{"id":"wh-1","callbackURL":"https://boardsync.example.com/trello-webhook","idModel":"board-1"}]`))
		})

		err := client.EnsureWebhook(ctx, "https://boardsync.example.com/trello-webhook")

		require.NoError(t, err)
	})
}

func TestClient_Breaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.Key = "test-key"
	cfg.Token = "test-token"
	cfg.BoardID = "board-1"
	cfg.FailureThreshold = 2
	client := NewClientWithBaseURL(cfg, nil, server.URL)

	ctx := context.Background()
	_, err := client.ListCards(ctx)
	assert.ErrorIs(t, err, ErrFetch)
	_, err = client.ListCards(ctx)
	assert.ErrorIs(t, err, ErrFetch)

	// The breaker is open now; calls fail fast.
	_, err = client.ListCards(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_UpsertCard(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2026, 3, 20, 17, 0, 0, 0, time.UTC)

	t.Run("creates when no card id is given", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/cards", r.URL.Path)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "Write report", r.FormValue("name"))
			assert.Equal(t, "list-1", r.FormValue("idList"))
			assert.Equal(t, "member-1", r.FormValue("idMembers"))
			assert.Equal(t, "2026-03-20T17:00:00Z", r.FormValue("due"))
			assert.Equal(t, "test-key", r.FormValue("key"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"card-9","name":"Write report","desc":"","due":"2026-03-20T17:00:00.000Z","idList":"list-1","idMembers":["member-1"]}`))
		})

		card, err := client.UpsertCard(ctx, "", "Write report", "", &due, []string{"member-1"}, "list-1")

		require.NoError(t, err)
		assert.Equal(t, "card-9", card.ID)
		require.NotNil(t, card.Due)
	})

	t.Run("updates when a card id is given", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/cards/card-9", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"card-9","name":"Renamed","desc":"","due":null,"idList":"list-2","idMembers":[]}`))
		})

		card, err := client.UpsertCard(ctx, "card-9", "Renamed", "", nil, nil, "list-2")

		require.NoError(t, err)
		assert.Equal(t, "Renamed", card.Name)
		assert.Equal(t, "list-2", card.ListID)
	})
}

func TestClient_DeleteCard(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/cards/card-9", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})

	assert.NoError(t, client.DeleteCard(context.Background(), "card-9"))
}
