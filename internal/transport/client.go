// Package transport implements the four request/response operations of the
// terminal bridge protocol. Each method issues exactly one network round trip;
// all sequencing and retry decisions belong to the caller.
package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/L1NNA/jupyter-http-terminal/internal/model"
)

// DefaultTimeout bounds a single round trip. A request that outlives it is
// aborted rather than holding up the caller's schedule indefinitely.
const DefaultTimeout = 10 * time.Second

// Client talks to one remote session. The session identifier is attached to
// every call as a query parameter.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// NewClient creates a Client for the given base URL and session identifier.
func NewClient(baseURL, sessionID string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(DefaultTimeout).
			SetQueryParam("session_id", sessionID).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateSession establishes the remote pseudo-terminal. It fails on network
// error or non-success status; the caller decides whether that is terminal.
func (c *Client) CreateSession(ctx context.Context) error {
	var status model.StatusResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&status).
		Get("/terminal")
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("create session: server returned %s", resp.Status())
	}
	return nil
}

// PollOutput fetches output produced since the previous poll, plus the closed
// flag. Where the server tracks its cursor is its own business; each call may
// return zero or more new bytes.
func (c *Client) PollOutput(ctx context.Context) (*model.OutputChunk, error) {
	var chunk model.OutputChunk
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&chunk).
		Get("/terminal/output")
	if err != nil {
		return nil, fmt.Errorf("poll output: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("poll output: server returned %s", resp.Status())
	}
	return &chunk, nil
}

// SendInput forwards one input fragment. The response body is ignored.
func (c *Client) SendInput(ctx context.Context, input string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(model.InputRequest{Input: input}).
		Post("/terminal/input")
	if err != nil {
		return fmt.Errorf("send input: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send input: server returned %s", resp.Status())
	}
	return nil
}

// Resize informs the remote PTY of a new viewport size. The response body is
// ignored.
func (c *Client) Resize(ctx context.Context, rows, cols int) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(model.ResizeRequest{Rows: rows, Cols: cols}).
		Post("/terminal/resize")
	if err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("resize: server returned %s", resp.Status())
	}
	return nil
}
