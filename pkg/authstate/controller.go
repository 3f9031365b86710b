// Package authstate implements the single source of truth for "who is logged
// in" in the GUARDIAN agent. The Controller orchestrates the OAuth handshake
// against the auth backend, owns the persisted Vault, and propagates every
// identity change to the registered user-scoped stores so that switching
// accounts can never leak a previous user's data.
package authstate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/audit"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/backend"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/errclass"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/metrics"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/notify"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/session"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/userdata"
)

const defaultReturnURL = "/"

// Backend is the slice of the backend client the controller uses.
type Backend interface {
	Initiate(ctx context.Context) (*backend.InitiateResponse, error)
	Callback(ctx context.Context, code, state string) (*backend.AuthResponse, error)
	Validate(ctx context.Context, token string) (*backend.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	Refresh(ctx context.Context, token string) (*backend.AuthResponse, error)
}

// Navigator routes the host UI. The agent never renders; it tells the shell
// where to go.
type Navigator interface {
	// ToLogin routes to the login screen.
	ToLogin()

	// To routes to an application URL or, for the OAuth handshake, performs
	// the full-page redirect to the authorization URL.
	To(url string)
}

// SlogNavigator logs intended navigation; the default when no UI is attached.
type SlogNavigator struct{}

// ToLogin logs the login navigation.
func (SlogNavigator) ToLogin() { slog.Info("navigate", "target", "login") }

// To logs the navigation target.
func (SlogNavigator) To(url string) { slog.Info("navigate", "target", url) }

// SessionRecorder persists session records for shared deployments.
// Implemented by the postgres store; optional.
type SessionRecorder interface {
	Record(ctx context.Context, s session.Session) error
	Drop(ctx context.Context, userID string) error
}

// Controller is the authority for authentication state.
type Controller struct {
	backend  Backend
	vault    session.Vault
	nav      Navigator
	notifier notify.Notifier
	auditor  audit.Logger
	metrics  *metrics.Metrics
	recorder SessionRecorder

	mu            sync.Mutex
	authenticated bool
	user          *backend.User
	sess          *session.Session
	loading       bool
	lastErr       error
	stores        []userdata.Scoped

	// epoch increments on every identity change. Results computed before a
	// change carry the old epoch and are dropped instead of applied.
	epoch uint64

	initInFlight bool
	initDone     chan struct{}
	initErr      error
}

// Option configures the controller.
type Option func(*Controller)

// WithNavigator sets the UI navigator.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) { c.nav = n }
}

// WithNotifier sets the notification sink.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithAudit sets the audit logger.
func WithAudit(l audit.Logger) Option {
	return func(c *Controller) { c.auditor = l }
}

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSessionRecorder sets the shared-deployment session record store.
func WithSessionRecorder(r SessionRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithStores registers user-scoped stores at construction time.
func WithStores(stores ...userdata.Scoped) Option {
	return func(c *Controller) { c.stores = append(c.stores, stores...) }
}

// New creates a Controller over the given backend and vault.
func New(b Backend, v session.Vault, opts ...Option) *Controller {
	c := &Controller{
		backend:  b,
		vault:    v,
		nav:      SlogNavigator{},
		notifier: notify.SlogNotifier{},
		auditor:  audit.SlogLogger{},
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// RegisterStore adds a user-scoped store and immediately binds it to the
// current identity.
func (c *Controller) RegisterStore(s userdata.Scoped) {
	c.mu.Lock()
	c.stores = append(c.stores, s)
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	c.mu.Unlock()
	s.SetCurrentUser(userID)
}

// Authenticated reports whether a validated session is active.
func (c *Controller) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Loading reports whether an Initialize is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Initialize restores a persisted session. With no persisted token it
// resolves to unauthenticated without touching the network. Concurrent calls
// coalesce into the running attempt and share its result.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initInFlight {
		done := c.initDone
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.initErr
	}
	c.initInFlight = true
	c.initDone = make(chan struct{})
	c.loading = true
	c.mu.Unlock()

	err := c.initialize(ctx)

	c.mu.Lock()
	c.loading = false
	c.lastErr = err
	c.initErr = err
	c.initInFlight = false
	close(c.initDone)
	c.mu.Unlock()
	return err
}

func (c *Controller) initialize(ctx context.Context) error {
	token, err := c.vault.Token()
	if err != nil {
		return fmt.Errorf("reading token slot: %w", err)
	}
	if token == "" {
		c.setUnauthenticated()
		return nil
	}

	epoch := c.currentEpoch()
	resp, err := c.backend.Validate(ctx, token)
	if err != nil {
		c.auditor.Log(ctx, audit.NewEvent(audit.ActionValidate, "", false, err))
		c.ClearSession()
		c.nav.ToLogin()
		return fmt.Errorf("validating persisted session: %w", err)
	}

	if !c.adopt(ctx, epoch, token, resp) {
		return nil
	}
	c.auditor.Log(ctx, audit.NewEvent(audit.ActionValidate, resp.User.ID, true, nil))
	return nil
}

// InitiateGoogleAuth starts the OAuth handshake: it obtains the
// authorization URL and CSRF state from the backend, persists the state and
// the pre-auth return URL, and hands the URL to the navigator for the
// full-page redirect.
func (c *Controller) InitiateGoogleAuth(ctx context.Context, returnURL string) error {
	resp, err := c.backend.Initiate(ctx)
	if err != nil {
		return fmt.Errorf("initiating sign-in: %w", err)
	}
	if err := c.vault.SetOAuthState(resp.State); err != nil {
		return fmt.Errorf("persisting oauth state: %w", err)
	}
	if returnURL == "" {
		returnURL = defaultReturnURL
	}
	if err := c.vault.SetReturnURL(returnURL); err != nil {
		return fmt.Errorf("persisting return url: %w", err)
	}

	c.nav.To(resp.AuthorizationURL)
	return nil
}

// HandleGoogleCallback completes the handshake. The returned state must
// match the persisted CSRF value; on mismatch no session is created, the
// scratch value is removed, and the user is routed to login. On success the
// code is exchanged, the token persisted, identity propagated, and the
// stored return URL navigated to.
func (c *Controller) HandleGoogleCallback(ctx context.Context, code, state string) error {
	stored, err := c.vault.OAuthState()
	// The state is one-time: remove it no matter how the exchange ends.
	_ = c.vault.DeleteOAuthState()
	if err != nil {
		return fmt.Errorf("reading oauth state: %w", err)
	}

	if stored == "" || stored != state {
		err := fmt.Errorf("%w: state mismatch", errclass.ErrOAuthFlow)
		c.loginFailed(ctx, err)
		c.notifier.Notify(notify.New(notify.LevelError, errclass.OAuthErrorText("oauth_state_mismatch")))
		c.nav.ToLogin()
		return err
	}

	epoch := c.currentEpoch()
	resp, err := c.backend.Callback(ctx, code, state)
	if err != nil {
		wrapped := fmt.Errorf("exchanging authorization code: %w", err)
		c.loginFailed(ctx, wrapped)
		c.notifier.Notify(notify.New(notify.LevelError, errclass.OAuthErrorText("oauth_exchange_failed")))
		c.nav.ToLogin()
		return wrapped
	}
	if resp.SessionToken == "" || resp.User == nil {
		err := fmt.Errorf("%w: backend returned no session", errclass.ErrOAuthFlow)
		c.loginFailed(ctx, err)
		c.notifier.Notify(notify.New(notify.LevelError, errclass.OAuthErrorText("oauth_exchange_failed")))
		c.nav.ToLogin()
		return err
	}

	if !c.adopt(ctx, epoch, resp.SessionToken, resp) {
		slog.Warn("dropping login result: identity changed during exchange")
		return nil
	}

	returnURL, err := c.vault.ReturnURL()
	if err != nil || returnURL == "" {
		returnURL = defaultReturnURL
	}
	_ = c.vault.DeleteReturnURL()

	c.auditor.Log(ctx, audit.NewEvent(audit.ActionLogin, resp.User.ID, true, nil))
	if c.metrics != nil {
		c.metrics.Logins.WithLabelValues("success").Inc()
	}
	c.notifier.Notify(notify.New(notify.LevelSuccess, "Signed in as "+resp.User.Email+"."))
	c.nav.To(returnURL)
	return nil
}

func (c *Controller) loginFailed(ctx context.Context, err error) {
	c.auditor.Log(ctx, audit.NewEvent(audit.ActionLogin, "", false, err))
	if c.metrics != nil {
		c.metrics.Logins.WithLabelValues("failure").Inc()
	}
}

// Logout ends the session. The backend call is best-effort: a network
// failure is logged and swallowed, local cleanup and the navigation to login
// always happen. An explicit token can be passed to revoke a session other
// than the current one.
func (c *Controller) Logout(ctx context.Context, tokenOverride ...string) error {
	c.mu.Lock()
	token := ""
	userID := ""
	if c.sess != nil {
		token = c.sess.Token
	}
	if c.user != nil {
		userID = c.user.ID
	}
	c.mu.Unlock()
	if len(tokenOverride) > 0 && tokenOverride[0] != "" {
		token = tokenOverride[0]
	}

	if token != "" {
		if err := c.backend.Logout(ctx, token); err != nil {
			slog.Warn("backend logout failed, continuing with local cleanup", "error", err)
		}
	}

	c.ClearSession()

	c.auditor.Log(ctx, audit.NewEvent(audit.ActionLogout, userID, true, nil))
	if c.metrics != nil {
		c.metrics.Logouts.Inc()
	}
	c.notifier.Notify(notify.New(notify.LevelSuccess, "You have been signed out."))
	c.nav.ToLogin()
	return nil
}

// ClearSession removes all persisted and in-memory session state: the vault
// slots, the controller's own fields, and every registered user-scoped
// store. Safe to call repeatedly and from error paths; there is exactly one
// code path that can log a user out and this is it.
func (c *Controller) ClearSession() {
	c.mu.Lock()
	userID := ""
	if c.user != nil {
		userID = c.user.ID
	}
	c.authenticated = false
	c.user = nil
	c.sess = nil
	c.lastErr = nil
	c.epoch++
	stores := slices.Clone(c.stores)
	c.mu.Unlock()

	if err := c.vault.Clear(); err != nil {
		slog.Warn("clearing vault failed", "error", err)
	}
	for _, s := range stores {
		s.ClearAll()
	}
	if c.metrics != nil {
		c.metrics.IsolationPurges.Inc()
	}
	if c.recorder != nil && userID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.recorder.Drop(ctx, userID); err != nil {
			slog.Warn("dropping session record failed", "error", err, "user_id", userID)
		}
	}
}

// RefreshTokens extends the session. A failed refresh means the session is
// unrecoverable: the controller is the single authority for
// "refresh failed, log out", and it funnels that through Logout here. The
// timeout monitor reports refresh failures but never logs out itself.
func (c *Controller) RefreshTokens(ctx context.Context) error {
	c.mu.Lock()
	if !c.authenticated || c.sess == nil {
		c.mu.Unlock()
		return errclass.ErrTokenMissing
	}
	token := c.sess.Token
	userID := c.sess.UserID
	epoch := c.epoch
	c.mu.Unlock()

	resp, err := c.backend.Refresh(ctx, token)
	if err != nil {
		c.auditor.Log(ctx, audit.NewEvent(audit.ActionRefresh, userID, false, err))
		if c.metrics != nil {
			c.metrics.Refreshes.WithLabelValues("failure").Inc()
		}
		_ = c.Logout(ctx)
		return fmt.Errorf("%w: %w", errclass.ErrRefreshFailed, err)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.sess == nil {
		c.mu.Unlock()
		slog.Warn("dropping refresh result: identity changed during refresh")
		return nil
	}
	rotated := resp.SessionToken != "" && resp.SessionToken != token
	if rotated {
		c.sess.Token = resp.SessionToken
	}
	c.sess.RefreshedAt = time.Now()
	if resp.Session != nil && !resp.Session.ExpiresAt.IsZero() {
		c.sess.ExpiresAt = resp.Session.ExpiresAt
	} else if claims, err := session.Introspect(c.sess.Token); err == nil && !claims.ExpiresAt.IsZero() {
		c.sess.ExpiresAt = claims.ExpiresAt.Time
	}
	sessCopy := c.sess.Clone()
	c.mu.Unlock()

	if rotated {
		if err := c.vault.SetToken(sessCopy.Token); err != nil {
			slog.Warn("persisting rotated token failed", "error", err)
		}
	}
	c.recordSession(ctx, sessCopy)

	c.auditor.Log(ctx, audit.NewEvent(audit.ActionRefresh, userID, true, nil))
	if c.metrics != nil {
		c.metrics.Refreshes.WithLabelValues("success").Inc()
	}
	return nil
}

// adopt commits a validated session and then propagates the identity to the
// registered stores. Commit strictly precedes propagation so a reader of a
// store can never observe the old user's data under the new identity. The
// expected epoch gates adoption: a result computed before a concurrent
// identity change is dropped, and nothing is persisted for it either.
func (c *Controller) adopt(ctx context.Context, expectedEpoch uint64, token string, resp *backend.AuthResponse) bool {
	if resp.User == nil || resp.User.ID == "" {
		return false
	}

	c.mu.Lock()
	if c.epoch != expectedEpoch {
		c.mu.Unlock()
		return false
	}
	// The token is written inside the critical section: a racing
	// ClearSession either bumped the epoch first (nothing is written) or
	// wipes the vault after this write lands.
	if err := c.vault.SetToken(token); err != nil {
		slog.Warn("persisting session token failed", "error", err)
	}
	user := *resp.User
	sess := buildSession(token, resp)
	c.user = &user
	c.sess = sess
	c.authenticated = true
	c.lastErr = nil
	c.epoch++
	stores := slices.Clone(c.stores)
	c.mu.Unlock()

	for _, s := range stores {
		s.SetCurrentUser(user.ID)
	}
	if c.metrics != nil {
		c.metrics.IsolationPurges.Inc()
	}

	if data, err := json.Marshal(user); err == nil {
		if err := c.vault.SetProfile(data); err != nil {
			slog.Warn("caching user profile failed", "error", err)
		}
	}
	c.recordSession(ctx, sess.Clone())
	return true
}

func (c *Controller) recordSession(ctx context.Context, sess *session.Session) {
	if c.recorder == nil || sess == nil {
		return
	}
	if err := c.recorder.Record(ctx, *sess); err != nil {
		slog.Warn("recording session failed", "error", err, "user_id", sess.UserID)
	}
}

func (c *Controller) setUnauthenticated() {
	c.mu.Lock()
	c.authenticated = false
	c.user = nil
	c.sess = nil
	c.mu.Unlock()
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// buildSession assembles the Session from a callback/validate response,
// falling back to JWT introspection when the backend omits the expiry.
func buildSession(token string, resp *backend.AuthResponse) *session.Session {
	s := &session.Session{
		Token:     token,
		CreatedAt: time.Now(),
	}
	if resp.User != nil {
		s.UserID = resp.User.ID
	}
	if resp.Session != nil {
		if !resp.Session.CreatedAt.IsZero() {
			s.CreatedAt = resp.Session.CreatedAt
		}
		s.ExpiresAt = resp.Session.ExpiresAt
	}
	if s.ExpiresAt.IsZero() {
		if claims, err := session.Introspect(token); err == nil && !claims.ExpiresAt.IsZero() {
			s.ExpiresAt = claims.ExpiresAt.Time
		}
	}
	return s
}
