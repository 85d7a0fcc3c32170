package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/boardsync/pkg/observability"
)

// WebhookHandler receives board webhook callbacks. A callback only signals
// that something changed on the board; the handler acks immediately and
// triggers a refresh pass out of band so slow board reads never block the
// webhook response.
type WebhookHandler struct {
	refresh    func(ctx context.Context)
	timeout    time.Duration
	logger     *slog.Logger
	inFlight   atomic.Bool
	refreshing atomic.Int64
}

// NewWebhookHandler creates a webhook handler. refresh runs the mirror
// pass and notification scans; timeout bounds each pass (zero means
// 2 minutes).
func NewWebhookHandler(refresh func(ctx context.Context), timeout time.Duration, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WebhookHandler{
		refresh: refresh,
		timeout: timeout,
		logger:  logger,
	}
}

// Handshake answers the registration probe the board sends before it
// accepts a webhook callback URL.
func (h *WebhookHandler) Handshake(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Receive acks a webhook event and schedules a refresh pass. Concurrent
// events coalesce into a single in-flight pass.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	// The event payload carries an action detail we do not need; the
	// refresh pass re-reads the whole board.
	if !h.inFlight.CompareAndSwap(false, true) {
		h.logger.Debug("webhook event coalesced into in-flight refresh")
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshing"})
		return
	}

	go h.runRefresh()

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// Refreshes returns how many refresh passes have completed.
func (h *WebhookHandler) Refreshes() int64 {
	return h.refreshing.Load()
}

func (h *WebhookHandler) runRefresh() {
	defer h.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	ctx = observability.WithCorrelationID(ctx, "")

	start := time.Now()
	h.refresh(ctx)
	h.refreshing.Add(1)

	h.logger.InfoContext(ctx, "webhook refresh pass completed",
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
