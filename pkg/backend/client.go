package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Config configures the backend client.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.guardian.example.
	BaseURL string

	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to the GUARDIAN auth backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Initiate requests a Google authorization URL and a CSRF state value.
func (c *Client) Initiate(ctx context.Context) (*InitiateResponse, error) {
	var out InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/auth/google/initiate", "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Callback exchanges the OAuth authorization code for a session.
func (c *Client) Callback(ctx context.Context, code, state string) (*AuthResponse, error) {
	body := map[string]string{"code": code, "state": state}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/google/callback", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate checks a persisted token against the backend session.
func (c *Client) Validate(ctx context.Context, token string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodGet, "/auth/validate", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the session server-side. Callers treat failures as
// best-effort; local cleanup never depends on this call succeeding.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// Refresh extends the session lifetime, optionally rotating the token.
func (c *Client) Refresh(ctx context.Context, token string) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentUser fetches the profile for the authenticated session.
func (c *Client) CurrentUser(ctx context.Context, token string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/user", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// apiError converts a non-2xx response into an *APIError. The body is read
// best-effort; a missing or malformed body still yields a usable error.
func apiError(resp *http.Response) error {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Message: http.StatusText(resp.StatusCode),
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(data) > 0 {
		var body errorBody
		if json.Unmarshal(data, &body) == nil {
			if body.Error != "" {
				apiErr.Message = body.Error
			}
			if body.ErrorDescription != "" {
				apiErr.Message = body.ErrorDescription
			}
			apiErr.Code = body.Code
			if apiErr.Code == "" {
				apiErr.Code = body.Error
			}
		}
	}

	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return apiErr
}
