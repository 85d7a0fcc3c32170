// Package activity fetches daily work log entries from the external
// activity service consumed by the daily summary.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrFetch marks an unreachable or failing activity service.
var ErrFetch = errors.New("activity fetch failed")

// Entry is one daily log record. The core treats these as read-only.
type Entry struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// Client reads daily logs by date.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the activity service.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// EntriesByDate fetches the log entries for one calendar day.
func (c *Client) EntriesByDate(ctx context.Context, day time.Time) ([]Entry, error) {
	target := c.baseURL + "/get-user-update-by-date?date=" + url.QueryEscape(day.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrFetch, err)
	}
	return entries, nil
}
