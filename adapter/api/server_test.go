package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler *WebhookHandler, readyz func(ctx context.Context) error, stats func() any) *httptest.Server {
	t.Helper()
	if handler == nil {
		handler = NewWebhookHandler(func(context.Context) {}, time.Second, nil)
	}
	s := NewServer(DefaultServerConfig(), handler, readyz, stats, nil)
	ts := httptest.NewServer(s.mux)
	t.Cleanup(ts.Close)
	return ts
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_Healthz_IncludesJobStats(t *testing.T) {
	stats := func() any {
		return []map[string]any{{"name": "board-sync", "runs": 3}}
	}
	ts := newTestServer(t, nil, nil, stats)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	require.Contains(t, body, "jobs")
}

func TestServer_Readyz(t *testing.T) {
	t.Run("ready when the dependency ping succeeds", func(t *testing.T) {
		ts := newTestServer(t, nil, func(context.Context) error { return nil }, nil)

		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("unavailable when the dependency ping fails", func(t *testing.T) {
		ts := newTestServer(t, nil, func(context.Context) error { return errors.New("connection refused") }, nil)

		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "dependency unavailable", body["message"])
	})
}

func TestServer_WebhookHandshake(t *testing.T) {
	ts := newTestServer(t, nil, nil, nil)

	req, err := http.NewRequest(http.MethodHead, ts.URL+"/trello-webhook", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_WebhookReceive(t *testing.T) {
	t.Run("acks and runs a refresh pass", func(t *testing.T) {
		var refreshed atomic.Int64
		handler := NewWebhookHandler(func(context.Context) { refreshed.Add(1) }, time.Second, nil)
		ts := newTestServer(t, handler, nil, nil)

		resp, err := http.Post(ts.URL+"/trello-webhook", "application/json", nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "accepted", body["status"])

		require.Eventually(t, func() bool {
			return handler.Refreshes() == 1
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, int64(1), refreshed.Load())
	})

	t.Run("concurrent events coalesce into one pass", func(t *testing.T) {
		release := make(chan struct{})
		handler := NewWebhookHandler(func(context.Context) { <-release }, time.Second, nil)
		ts := newTestServer(t, handler, nil, nil)

		resp, err := http.Post(ts.URL+"/trello-webhook", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, "accepted", decodeBody(t, resp)["status"])

		resp, err = http.Post(ts.URL+"/trello-webhook", "application/json", nil)
		require.NoError(t, err)
		assert.Equal(t, "refreshing", decodeBody(t, resp)["status"])

		close(release)
		require.Eventually(t, func() bool {
			return handler.Refreshes() == 1
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("wrong method is rejected", func(t *testing.T) {
		ts := newTestServer(t, nil, nil, nil)

		resp, err := http.Get(ts.URL + "/trello-webhook")
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
