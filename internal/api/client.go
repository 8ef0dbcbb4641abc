// Package api is the HTTP client for the OS Buddy session service.
package api

import (
	"bytes"
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

var (
	// ErrStatus matches every non-2xx answer.
	ErrStatus = errors.New("unexpected status")
	// ErrNotFound matches a 404: the session is unknown or not ours.
	ErrNotFound = errors.New("session not found")
)

// StatusError is returned for non-2xx answers. It matches ErrStatus, and
// ErrNotFound when Code is 404.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service returned status %d", e.Code)
	}
	return fmt.Sprintf("service returned status %d: %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus || (target == ErrNotFound && e.Code == http.StatusNotFound)
}

// Client talks to the session service. UserID, when set, is sent as
// X-User-ID on every request.
type Client struct {
	baseURL string
	userID  func() string
	client  *http.Client
}

// NewClient creates a client for baseURL. Pass a nil userID to leave
// requests unscoped.
func NewClient(baseURL string, userID func() string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var out []SessionSummary
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return out, nil
}

func (c *Client) NewSession(ctx context.Context) (string, error) {
	var out NewSessionResponse
	if err := c.do(ctx, http.MethodPost, "/sessions/new", nil, &out); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if out.ID == "" {
		return "", errors.New("creating session: service returned no id")
	}
	return out.ID, nil
}

func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	if out.ID == "" {
		out.ID = id
	}
	return &out, nil
}

// DeleteSession reports the service's success flag.
func (c *Client) DeleteSession(ctx context.Context, id string) (bool, error) {
	var out DeleteResponse
	if err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return false, fmt.Errorf("deleting session %s: %w", id, err)
	}
	return out.Success, nil
}

// Chat sends message to sessionID, or to a new session when sessionID is "".
func (c *Client) Chat(ctx context.Context, message, sessionID string) (*ChatReply, error) {
	var out ChatReply
	req := ChatRequest{Message: message, SessionID: sessionID}
	if err := c.do(ctx, http.MethodPost, "/chat", req, &out); err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != nil {
		if uid := c.userID(); uid != "" {
			req.Header.Set(UserHeader, uid)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		_ = json.Unmarshal(data, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
