// Package notify fans user-facing notifications out to the host UI.
// The agent never renders anything itself; it emits exactly one notification
// per terminal failure and lets the embedding shell decide presentation.
package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Level classifies a notification.
type Level string

const (
	// LevelInfo is neutral information.
	LevelInfo Level = "info"

	// LevelSuccess confirms a completed action.
	LevelSuccess Level = "success"

	// LevelWarning flags a condition needing attention.
	LevelWarning Level = "warning"

	// LevelError reports a failure.
	LevelError Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	ID      string
	Level   Level
	Message string

	// Persistent notifications stay until dismissed (e.g. the
	// session-expired banner); transient ones may auto-hide.
	Persistent bool
}

// Notifier delivers notifications to the host UI.
type Notifier interface {
	Notify(n Notification)
}

// New builds a Notification with a fresh ID.
func New(level Level, message string) Notification {
	return Notification{ID: uuid.NewString(), Level: level, Message: message}
}

// Persistent builds a persistent Notification.
func Persistent(level Level, message string) Notification {
	n := New(level, message)
	n.Persistent = true
	return n
}

// SlogNotifier logs notifications; the default sink when no UI is attached.
type SlogNotifier struct{}

// Notify logs the notification at a level matching its severity.
func (SlogNotifier) Notify(n Notification) {
	switch n.Level {
	case LevelError:
		slog.Error("notification", "message", n.Message, "persistent", n.Persistent)
	case LevelWarning:
		slog.Warn("notification", "message", n.Message, "persistent", n.Persistent)
	default:
		slog.Info("notification", "message", n.Message, "level", string(n.Level))
	}
}

// Recorder captures notifications for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify records the notification.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns every recorded notification.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// ByLevel returns recorded notifications of one level.
func (r *Recorder) ByLevel(level Level) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.sent {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// Reset drops all recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// Verify interface compliance.
var (
	_ Notifier = SlogNotifier{}
	_ Notifier = (*Recorder)(nil)
)
