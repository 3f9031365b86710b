// Package backend provides the HTTP client for the GUARDIAN auth backend.
// The backend owns the OAuth handshake with Google and issues opaque session
// tokens; this package only speaks its HTTP/JSON contract.
package backend

import (
	"fmt"
	"time"
)

// User is the authenticated user profile returned by the backend.
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// SessionInfo describes the server-side session attached to a token.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// InitiateResponse is returned by POST /auth/google/initiate.
type InitiateResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

// AuthResponse is the common success shape of callback, validate and refresh.
// SessionToken is empty on validate; refresh sets it only when the backend
// rotates the token.
type AuthResponse struct {
	SessionToken string       `json:"session_token,omitempty"`
	User         *User        `json:"user"`
	Session      *SessionInfo `json:"session"`
}

// APIError is a non-2xx response from the backend mapped into a typed error.
// Code carries the backend's machine-readable error code when present.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s (status %d, code %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
}

// errorBody is the backend's error response shape.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	Code             string `json:"code,omitempty"`
}
