package errclass

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/backend"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/metrics"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/notify"
)

// SessionControl is the slice of the auth state controller the handler needs.
type SessionControl interface {
	ClearSession()
	RefreshTokens(ctx context.Context) error
	Logout(ctx context.Context, tokenOverride ...string) error
}

// Navigator routes the host UI.
type Navigator interface {
	ToLogin()
}

// Config tunes the handler's retry policies.
type Config struct {
	// MaxRetries bounds network retries after the initial attempt.
	// Default 3.
	MaxRetries int

	// BaseDelay is the first backoff delay. Default 500ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default 5s.
	MaxDelay time.Duration

	// MaxRefreshAttempts bounds refresh-and-retry cycles per operation
	// for expired tokens. Default 3.
	MaxRefreshAttempts int
}

func (c *Config) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.MaxRefreshAttempts == 0 {
		c.MaxRefreshAttempts = 3
	}
}

// Handler runs operations through classification and per-kind recovery.
type Handler struct {
	cfg      Config
	session  SessionControl
	nav      Navigator
	notifier notify.Notifier
	metrics  *metrics.Metrics

	mu       sync.Mutex
	attempts map[string]int
}

// NewHandler creates a Handler. metrics may be nil.
func NewHandler(cfg Config, sc SessionControl, nav Navigator, notifier notify.Notifier, m *metrics.Metrics) *Handler {
	cfg.applyDefaults()
	return &Handler{
		cfg:      cfg,
		session:  sc,
		nav:      nav,
		notifier: notifier,
		metrics:  m,
		attempts: make(map[string]int),
	}
}

// Option adjusts handling for a single call.
type Option func(*options)

type options struct {
	suppressRedirect bool
}

// SuppressRedirect keeps the handler from navigating to the login route for
// kinds that would otherwise redirect.
func SuppressRedirect() Option {
	return func(o *options) { o.suppressRedirect = true }
}

// Do runs fn through the recovery policies. op is an arbitrary caller-chosen
// name keying the refresh dedup bookkeeping; counts are cleared on success
// and on exhaustion.
func (h *Handler) Do(ctx context.Context, op string, fn func(context.Context) error, opts ...Option) error {
	var o options
	for _, apply := range opts {
		apply(&o)
	}

	err := fn(ctx)
	if err == nil {
		h.clearAttempts(op)
		return nil
	}
	return h.handle(ctx, op, fn, err, o, opts, false)
}

// handle applies the per-kind policy to err. retried marks an error that
// already went through the network retry loop: a failure that changed kind
// mid-retry still gets its kind's terminal policy, but never loops again.
func (h *Handler) handle(ctx context.Context, op string, fn func(context.Context) error, err error, o options, opts []Option, retried bool) error {
	kind := Classify(err)
	if h.metrics != nil {
		h.metrics.ClassifiedErrors.WithLabelValues(kind.String()).Inc()
	}

	switch kind {
	case KindNetwork:
		return h.retryNetwork(ctx, op, fn, o, opts)

	case KindTokenExpired:
		if retried {
			// Refreshing here would loop straight back into the retry
			// path; treat it like refresh exhaustion.
			h.clearAttempts(op)
			h.notifier.Notify(notify.New(notify.LevelError, "Your session could not be renewed. Please sign in again."))
			_ = h.session.Logout(ctx)
			return err
		}
		return h.refreshAndRetry(ctx, op, fn, err, opts)

	case KindTokenMissing:
		h.clearAttempts(op)
		h.notifier.Notify(notify.New(notify.LevelWarning, "Please sign in to continue."))
		if !o.suppressRedirect {
			h.nav.ToLogin()
		}
		return err

	case KindTokenInvalid:
		h.clearAttempts(op)
		h.session.ClearSession()
		h.notifier.Notify(notify.New(notify.LevelError, "Your session is no longer valid. Please sign in again."))
		h.nav.ToLogin()
		return err

	case KindRefreshFailed:
		h.clearAttempts(op)
		// Logout funnels through the controller's single clearSession path.
		_ = h.session.Logout(ctx)
		return err

	case KindPermissionDenied:
		// Never log out: other features may remain usable.
		h.notifier.Notify(notify.New(notify.LevelError, "You do not have permission to perform this action."))
		return err

	case KindRateLimited:
		h.notifyRateLimited(err)
		return err

	case KindServer:
		h.notifier.Notify(notify.New(notify.LevelError, "The GUARDIAN service reported an error. Please try again later."))
		return err

	case KindUserNotFound:
		h.clearAttempts(op)
		h.session.ClearSession()
		h.notifier.Notify(notify.New(notify.LevelError, "Your account could not be found. Please sign in again."))
		h.nav.ToLogin()
		return err

	case KindOAuthFlow:
		h.clearAttempts(op)
		h.notifier.Notify(notify.New(notify.LevelError, OAuthErrorText(apiCode(err))))
		if !o.suppressRedirect {
			h.nav.ToLogin()
		}
		return err

	default:
		// Fail safe: nothing destructive when uncertain.
		h.notifier.Notify(notify.New(notify.LevelError, "Something went wrong. Please try again."))
		return err
	}
}

// retryNetwork retries fn with exponential backoff. The initial attempt plus
// MaxRetries retries bounds the total attempt count; exhaustion surfaces one
// terminal notice.
func (h *Handler) retryNetwork(ctx context.Context, op string, fn func(context.Context) error, o options, opts []Option) error {
	err := retry.Do(
		func() error { return fn(ctx) },
		retry.Attempts(uint(h.cfg.MaxRetries)), // #nosec G115 -- small positive config value
		retry.Delay(h.cfg.BaseDelay),
		retry.MaxDelay(h.cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return Classify(err) == KindNetwork }),
	)
	if err == nil {
		h.clearAttempts(op)
		return nil
	}
	if Classify(err) == KindNetwork {
		h.clearAttempts(op)
		h.notifier.Notify(notify.New(notify.LevelError, "Could not reach the GUARDIAN service. Check your connection and try again."))
		return fmt.Errorf("%s: connection failed after %d attempts: %w", op, h.cfg.MaxRetries+1, err)
	}
	// The failure changed kind mid-retry; it still gets that kind's
	// terminal policy, it just cannot re-enter a retry loop.
	return h.handle(ctx, op, fn, err, o, opts, true)
}

// refreshAndRetry refreshes the token and re-runs fn, bounded per operation.
// A failed refresh is terminal via the controller (which owns logout).
func (h *Handler) refreshAndRetry(ctx context.Context, op string, fn func(context.Context) error, cause error, opts []Option) error {
	n := h.bumpAttempts(op)
	if n > h.cfg.MaxRefreshAttempts {
		h.clearAttempts(op)
		h.notifier.Notify(notify.New(notify.LevelError, "Your session could not be renewed. Please sign in again."))
		_ = h.session.Logout(ctx)
		return cause
	}

	if err := h.session.RefreshTokens(ctx); err != nil {
		h.clearAttempts(op)
		return errors.Join(cause, err)
	}
	return h.Do(ctx, op, fn, opts...)
}

func (h *Handler) notifyRateLimited(err error) {
	msg := "Too many requests. Please wait a moment and try again."
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		msg = fmt.Sprintf("Too many requests. Please try again in %s.", apiErr.RetryAfter.Round(time.Second))
	}
	h.notifier.Notify(notify.New(notify.LevelWarning, msg))
}

func (h *Handler) bumpAttempts(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts[op]++
	return h.attempts[op]
}

func (h *Handler) clearAttempts(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.attempts, op)
}

// Attempts reports the live bookkeeping for op; zero after success or
// exhaustion.
func (h *Handler) Attempts(op string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts[op]
}

func apiCode(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}
