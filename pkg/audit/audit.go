// Package audit records auth lifecycle transitions for compliance review.
// GUARDIAN deployments are subject to audit-trail expectations, so every
// login, logout, refresh and isolation purge is captured as a structured
// event.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action identifies the lifecycle transition being audited.
type Action string

const (
	// ActionLogin is a completed OAuth callback exchange.
	ActionLogin Action = "login"

	// ActionValidate is a startup token validation.
	ActionValidate Action = "validate"

	// ActionRefresh is a token refresh attempt.
	ActionRefresh Action = "refresh"

	// ActionLogout is a user- or system-initiated logout.
	ActionLogout Action = "logout"

	// ActionPurge is an identity-change purge of the user-scoped stores.
	ActionPurge Action = "purge"
)

// Event is one auditable auth transition.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id,omitempty"`
	Action    Action    `json:"action"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(action Action, userID string, success bool, err error) Event {
	e := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Action:    action,
		Success:   success,
	}
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// SlogLogger writes audit events to the structured log.
type SlogLogger struct{}

// Log emits the event.
func (SlogLogger) Log(_ context.Context, e Event) {
	slog.Info("audit",
		"audit_id", e.ID,
		"action", string(e.Action),
		"user_id", e.UserID,
		"success", e.Success,
		"error", e.Error,
	)
}

// MemoryLogger keeps events in memory; used in tests and by the local
// status API.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// Log appends the event.
func (l *MemoryLogger) Log(_ context.Context, e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

// Events returns all recorded events.
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Verify interface compliance.
var (
	_ Logger = SlogLogger{}
	_ Logger = (*MemoryLogger)(nil)
)
