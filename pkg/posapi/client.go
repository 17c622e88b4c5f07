// Package posapi is a small client for the restaurant's REST API.
package posapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bistro/pkg/session"
)

var (
	ErrNotFound    = errors.New("resource not found in restaurant api")
	ErrUnavailable = errors.New("restaurant api unavailable or returned an error")
)

// Client talks to the restaurant API. It never retries.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a client; token is sent as a bearer token when set.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetSession fetches a table session with its orders and items.
func (c *Client) GetSession(ctx context.Context, id int64) (session.Session, error) {
	var s session.Session
	if err := c.do(ctx, http.MethodGet, "/table-sessions/"+strconv.FormatInt(id, 10), &s); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// ListMenuItems fetches the full menu catalog.
func (c *Client) ListMenuItems(ctx context.Context) ([]session.MenuItem, error) {
	var items []session.MenuItem
	if err := c.do(ctx, http.MethodGet, "/menu-items", &items); err != nil {
		return nil, err
	}
	return items, nil
}

// CloseSession ends the session and frees its table.
func (c *Client) CloseSession(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, "/table-sessions/"+strconv.FormatInt(id, 10)+"/close", nil)
}

// ListTables fetches the floor plan with occupancy.
func (c *Client) ListTables(ctx context.Context) ([]session.Table, error) {
	var tables []session.Table
	if err := c.do(ctx, http.MethodGet, "/tables", &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// ListHistory fetches one page of closed sessions.
func (c *Client) ListHistory(ctx context.Context, page, pageSize int) (session.HistoryPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))

	var out session.HistoryPage
	if err := c.do(ctx, http.MethodGet, "/table-sessions/history/paginated?"+q.Encode(), &out); err != nil {
		return session.HistoryPage{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to restaurant api: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrUnavailable, method, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
