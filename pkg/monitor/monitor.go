// Package monitor proactively watches session expiry so a token never dies
// mid-request. It reads the auth state only through snapshots: an interval
// callback holding a live reference into the controller either reads stale
// state or feeds updates back into the state it is reacting to.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/authstate"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/notify"
)

// AuthState is the slice of the auth state controller the monitor needs.
// RefreshTokens is the single authority for refresh failure handling; the
// monitor never logs a user out on its own unless auto-logout on hard expiry
// is configured.
type AuthState interface {
	Snapshot() authstate.Snapshot
	RefreshTokens(ctx context.Context) error
	Logout(ctx context.Context, tokenOverride ...string) error
}

// Config tunes the monitor.
type Config struct {
	// Interval between checks. Default 60s.
	Interval time.Duration

	// WarningThreshold is the remaining lifetime below which the user is
	// warned. Default 10m.
	WarningThreshold time.Duration

	// RefreshThreshold is the remaining lifetime below which a silent
	// refresh is attempted. Default 5m.
	RefreshThreshold time.Duration

	// WarningEvery rate-limits expiry warnings. Default one per 2m.
	WarningEvery time.Duration

	// AutoLogoutOnExpiry logs the user out when the session has fully
	// expired. When false a persistent warning is shown instead.
	AutoLogoutOnExpiry bool
}

func (c *Config) applyDefaults() {
	if c.Interval == 0 {
		c.Interval = time.Minute
	}
	if c.WarningThreshold == 0 {
		c.WarningThreshold = 10 * time.Minute
	}
	if c.RefreshThreshold == 0 {
		c.RefreshThreshold = 5 * time.Minute
	}
	if c.WarningEvery == 0 {
		c.WarningEvery = 2 * time.Minute
	}
}

// Monitor periodically checks session expiry and attempts silent recovery.
type Monitor struct {
	cfg      Config
	auth     AuthState
	notifier notify.Notifier

	mu       sync.Mutex
	limiter  *rate.Limiter
	expired  bool
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a Monitor.
func New(cfg Config, auth AuthState, notifier notify.Notifier) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		cfg:      cfg,
		auth:     auth,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Every(cfg.WarningEvery), 1),
	}
}

// Start begins periodic checks. Calling Start on a running monitor is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Tick(ctx)
			}
		}
	}()
}

// Stop cancels the checks and resets the warning state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	m.ResetWarning()
}

// Running reports whether the monitor loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ResetWarning clears the warning rate limit and the expired flag. Call
// after a successful refresh so the next warning window starts fresh.
func (m *Monitor) ResetWarning() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiter = rate.NewLimiter(rate.Every(m.cfg.WarningEvery), 1)
	m.expired = false
}

// Tick runs one expiry check against a fresh snapshot.
func (m *Monitor) Tick(ctx context.Context) {
	snap := m.auth.Snapshot()
	if snap.Session == nil || snap.Session.ExpiresAt.IsZero() {
		return
	}

	untilExpiry := time.Until(snap.Session.ExpiresAt)

	if untilExpiry <= 0 {
		m.handleExpired(ctx)
		return
	}

	if untilExpiry > m.cfg.WarningThreshold {
		return
	}

	if m.allowWarning() {
		m.notifier.Notify(notify.New(notify.LevelWarning,
			fmt.Sprintf("Your session expires in %s.", untilExpiry.Round(time.Minute))))
	}

	if untilExpiry <= m.cfg.RefreshThreshold {
		m.silentRefresh(ctx)
	}
}

func (m *Monitor) handleExpired(ctx context.Context) {
	m.mu.Lock()
	alreadyExpired := m.expired
	m.expired = true
	m.mu.Unlock()

	// Stop checking: the session is gone either way.
	m.stopAsync()

	if m.cfg.AutoLogoutOnExpiry {
		if err := m.auth.Logout(ctx); err != nil {
			slog.Warn("auto-logout after expiry failed", "error", err)
		}
		return
	}
	if !alreadyExpired {
		m.notifier.Notify(notify.Persistent(notify.LevelWarning,
			"Your session has expired. Please sign in again."))
	}
}

// stopAsync cancels the loop without blocking; safe from inside a tick.
func (m *Monitor) stopAsync() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.cancel()
}

// silentRefresh attempts to renew the session without user interaction.
// On failure it only surfaces an error: the controller's RefreshTokens owns
// the logout decision, and a second logout path here would race with it.
func (m *Monitor) silentRefresh(ctx context.Context) {
	if err := m.auth.RefreshTokens(ctx); err != nil {
		slog.Warn("silent session refresh failed", "error", err)
		m.notifier.Notify(notify.New(notify.LevelError,
			"Your session could not be renewed automatically."))
		return
	}
	m.ResetWarning()
	m.notifier.Notify(notify.New(notify.LevelSuccess, "Your session has been renewed."))
}

func (m *Monitor) allowWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limiter.Allow()
}
