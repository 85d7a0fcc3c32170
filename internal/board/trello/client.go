// Package trello implements the board client against the Trello REST API.
package trello

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/boardsync/internal/board"
	"github.com/sony/gobreaker/v2"
)

const defaultBaseURL = "https://api.trello.com/1"

var (
	// ErrFetch marks a transport failure or non-2xx response from the
	// board API. A fetch error on the card list aborts the whole
	// reconciliation pass.
	ErrFetch = errors.New("board fetch failed")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("board API unavailable")
)

// Config holds Trello API credentials and tuning.
type Config struct {
	Key     string
	Token   string
	BoardID string

	// Timeout bounds every request. Zero means 15s.
	Timeout time.Duration

	// BreakerEnabled wraps all calls in a circuit breaker so a dead board
	// API fails fast instead of stalling scheduled jobs.
	BreakerEnabled   bool
	BreakerInterval  time.Duration
	BreakerTimeout   time.Duration
	FailureThreshold uint32
}

// DefaultConfig returns production-friendly settings.
func DefaultConfig() Config {
	return Config{
		Timeout:          15 * time.Second,
		BreakerEnabled:   true,
		BreakerInterval:  10 * time.Second,
		BreakerTimeout:   30 * time.Second,
		FailureThreshold: 5,
	}
}

// Client talks to the Trello REST API. It is pure I/O: no mirror policy
// lives here.
type Client struct {
	config  Config
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewClient creates a Trello client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return NewClientWithBaseURL(cfg, logger, defaultBaseURL)
}

// NewClientWithBaseURL creates a Trello client against a custom base URL.
func NewClientWithBaseURL(cfg Config, logger *slog.Logger, baseURL string) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		config:  cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}

	if cfg.BreakerEnabled {
		settings := gobreaker.Settings{
			Name:     "trello",
			Interval: cfg.BreakerInterval,
			Timeout:  cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("board circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
		}
		c.breaker = gobreaker.NewCircuitBreaker[[]byte](settings)
	}

	return c
}

// ListCards fetches every card on the configured board.
func (c *Client) ListCards(ctx context.Context) ([]board.CardSnapshot, error) {
	body, err := c.get(ctx, "/boards/"+c.config.BoardID+"/cards", nil)
	if err != nil {
		return nil, err
	}

	var raw []cardPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding card list: %v", ErrFetch, err)
	}

	cards := make([]board.CardSnapshot, 0, len(raw))
	for _, p := range raw {
		cards = append(cards, p.toSnapshot())
	}
	return cards, nil
}

// GetList fetches one list by id.
func (c *Client) GetList(ctx context.Context, listID string) (board.ListInfo, error) {
	body, err := c.get(ctx, "/lists/"+listID, nil)
	if err != nil {
		return board.ListInfo{}, err
	}

	var raw struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return board.ListInfo{}, fmt.Errorf("%w: decoding list: %v", ErrFetch, err)
	}
	return board.ListInfo{ID: raw.ID, Name: raw.Name}, nil
}

// GetMember fetches one member profile by id.
func (c *Client) GetMember(ctx context.Context, memberID string) (board.MemberProfile, error) {
	body, err := c.get(ctx, "/members/"+memberID, nil)
	if err != nil {
		return board.MemberProfile{}, err
	}

	var raw struct {
		ID       string `json:"id"`
		FullName string `json:"fullName"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return board.MemberProfile{}, fmt.Errorf("%w: decoding member: %v", ErrFetch, err)
	}
	return board.MemberProfile{ID: raw.ID, FullName: raw.FullName, Username: raw.Username}, nil
}

// UpsertCard creates a card, or updates it when cardID is non-empty. The
// card is placed in the given list.
func (c *Client) UpsertCard(ctx context.Context, cardID, name, desc string, due *time.Time, memberIDs []string, listID string) (board.CardSnapshot, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("desc", desc)
	form.Set("idMembers", strings.Join(memberIDs, ","))
	form.Set("idList", listID)
	if due != nil {
		form.Set("due", due.Format(time.RFC3339))
	}

	method := http.MethodPost
	path := "/cards"
	if cardID != "" {
		method = http.MethodPut
		path = "/cards/" + cardID
	}

	body, err := c.do(ctx, method, path, form)
	if err != nil {
		return board.CardSnapshot{}, err
	}

	var raw cardPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return board.CardSnapshot{}, fmt.Errorf("%w: decoding card: %v", ErrFetch, err)
	}
	return raw.toSnapshot(), nil
}

// DeleteCard removes a card from the board.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/cards/"+cardID, nil)
	return err
}

// ListWebhooks lists the webhooks registered for the configured token.
func (c *Client) ListWebhooks(ctx context.Context) ([]board.Webhook, error) {
	body, err := c.get(ctx, "/tokens/"+c.config.Token+"/webhooks", nil)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		ID          string `json:"id"`
		CallbackURL string `json:"callbackURL"`
		IDModel     string `json:"idModel"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decoding webhooks: %v", ErrFetch, err)
	}

	hooks := make([]board.Webhook, 0, len(raw))
	for _, h := range raw {
		hooks = append(hooks, board.Webhook{ID: h.ID, CallbackURL: h.CallbackURL, ModelID: h.IDModel})
	}
	return hooks, nil
}

// CreateWebhook registers a webhook for the configured board.
func (c *Client) CreateWebhook(ctx context.Context, callbackURL string) (board.Webhook, error) {
	form := url.Values{}
	form.Set("callbackURL", callbackURL)
	form.Set("idModel", c.config.BoardID)

	body, err := c.do(ctx, http.MethodPost, "/webhooks", form)
	if err != nil {
		return board.Webhook{}, err
	}

	var raw struct {
		ID          string `json:"id"`
		CallbackURL string `json:"callbackURL"`
		IDModel     string `json:"idModel"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return board.Webhook{}, fmt.Errorf("%w: decoding webhook: %v", ErrFetch, err)
	}
	return board.Webhook{ID: raw.ID, CallbackURL: raw.CallbackURL, ModelID: raw.IDModel}, nil
}

// EnsureWebhook registers the callback URL unless a webhook for it already
// exists.
func (c *Client) EnsureWebhook(ctx context.Context, callbackURL string) error {
	hooks, err := c.ListWebhooks(ctx)
	if err != nil {
		return err
	}
	for _, h := range hooks {
		if h.CallbackURL == callbackURL {
			return nil
		}
	}
	_, err = c.CreateWebhook(ctx, callbackURL)
	return err
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path+"?"+c.query(params).Encode(), nil)
}

func (c *Client) query(params url.Values) url.Values {
	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.config.Key)
	params.Set("token", c.config.Token)
	return params
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	call := func() ([]byte, error) {
		return c.roundTrip(ctx, method, path, form)
	}

	if c.breaker == nil {
		return call()
	}

	body, err := c.breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	target := c.baseURL + path
	var reqBody io.Reader
	if form != nil {
		c.query(form)
		reqBody = strings.NewReader(form.Encode())
	} else if !strings.Contains(path, "?") {
		target += "?" + c.query(nil).Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrFetch, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrFetch, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrFetch, method, path, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

type cardPayload struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Desc      string   `json:"desc"`
	Due       *string  `json:"due"`
	IDList    string   `json:"idList"`
	IDMembers []string `json:"idMembers"`
}

func (p cardPayload) toSnapshot() board.CardSnapshot {
	snap := board.CardSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		Desc:      p.Desc,
		ListID:    p.IDList,
		MemberIDs: p.IDMembers,
	}
	if p.Due != nil && *p.Due != "" {
		if due, err := time.Parse(time.RFC3339, *p.Due); err == nil {
			snap.Due = &due
		}
	}
	return snap
}
