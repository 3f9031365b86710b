package authstate

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/backend"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/errclass"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/notify"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/session"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/userdata"
)

const (
	testToken  = "tok-session-1"
	testUserID = "user-1"
	testEmail  = "qa@pharma.example"
	testState  = "state-abc"
)

type fakeBackend struct {
	mu sync.Mutex

	initiateResp *backend.InitiateResponse
	initiateErr  error
	callbackResp *backend.AuthResponse
	callbackErr  error
	validateResp *backend.AuthResponse
	validateErr  error
	refreshResp  *backend.AuthResponse
	refreshErr   error
	logoutErr    error

	// validateHook and callbackHook run inside the call before the
	// response is returned, letting tests race identity changes against
	// an in-flight round-trip.
	validateHook func()
	callbackHook func()

	initiateCalls int
	callbackCalls int
	validateCalls int
	refreshCalls  int
	logoutCalls   int
}

func (f *fakeBackend) Initiate(context.Context) (*backend.InitiateResponse, error) {
	f.mu.Lock()
	f.initiateCalls++
	resp, err := f.initiateResp, f.initiateErr
	f.mu.Unlock()
	return resp, err
}

func (f *fakeBackend) Callback(_ context.Context, _, _ string) (*backend.AuthResponse, error) {
	f.mu.Lock()
	f.callbackCalls++
	resp, err := f.callbackResp, f.callbackErr
	hook := f.callbackHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return resp, err
}

func (f *fakeBackend) Validate(context.Context, string) (*backend.AuthResponse, error) {
	f.mu.Lock()
	f.validateCalls++
	resp, err := f.validateResp, f.validateErr
	hook := f.validateHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return resp, err
}

func (f *fakeBackend) Logout(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func (f *fakeBackend) Refresh(context.Context, string) (*backend.AuthResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshResp, f.refreshErr
}

type backendCalls struct {
	initiateCalls int
	callbackCalls int
	validateCalls int
	refreshCalls  int
	logoutCalls   int
}

func (f *fakeBackend) calls() backendCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return backendCalls{
		initiateCalls: f.initiateCalls,
		callbackCalls: f.callbackCalls,
		validateCalls: f.validateCalls,
		refreshCalls:  f.refreshCalls,
		logoutCalls:   f.logoutCalls,
	}
}

type recordingNav struct {
	mu      sync.Mutex
	targets []string
	logins  int
}

func (n *recordingNav) ToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.logins++
}

func (n *recordingNav) To(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, url)
}

func (n *recordingNav) loginCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.logins
}

func (n *recordingNav) lastTarget() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.targets) == 0 {
		return ""
	}
	return n.targets[len(n.targets)-1]
}

func authResponse() *backend.AuthResponse {
	return &backend.AuthResponse{
		SessionToken: testToken,
		User:         &backend.User{ID: testUserID, Email: testEmail, Name: "QA Reviewer"},
		Session: &backend.SessionInfo{
			ID:        "sess-1",
			CreatedAt: time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func newTestController(b *fakeBackend) (*Controller, *session.MemoryVault, *recordingNav, *notify.Recorder, *userdata.DocumentStore) {
	vault := session.NewMemoryVault()
	nav := &recordingNav{}
	rec := &notify.Recorder{}
	docs := userdata.NewDocumentStore()
	c := New(b, vault,
		WithNavigator(nav),
		WithNotifier(rec),
		WithStores(docs),
	)
	return c, vault, nav, rec, docs
}

func TestInitialize_NoTokenResolvesOffline(t *testing.T) {
	b := &fakeBackend{}
	c, _, _, _, _ := newTestController(b)

	require.NoError(t, c.Initialize(context.Background()))

	assert.False(t, c.Authenticated())
	assert.Zero(t, b.calls().validateCalls, "no network traffic without a persisted token")
}

func TestInitialize_RestoresPersistedSession(t *testing.T) {
	b := &fakeBackend{validateResp: authResponse()}
	c, vault, _, _, docs := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))

	require.NoError(t, c.Initialize(context.Background()))

	assert.True(t, c.Authenticated())
	snap := c.Snapshot()
	require.NotNil(t, snap.User)
	assert.Equal(t, testUserID, snap.User.ID)
	assert.Equal(t, testToken, snap.Token)
	assert.Equal(t, testUserID, docs.CurrentUser(), "stores bound to the validated identity")
}

func TestInitialize_RejectedTokenClearsEverything(t *testing.T) {
	b := &fakeBackend{
		validateErr: &backend.APIError{Status: http.StatusUnauthorized, Code: "session_invalid"},
	}
	c, vault, nav, _, docs := newTestController(b)
	require.NoError(t, vault.SetToken("stale-token"))
	docs.SetCurrentUser(testUserID)

	err := c.Initialize(context.Background())

	require.Error(t, err)
	assert.False(t, c.Authenticated())
	token, verr := vault.Token()
	require.NoError(t, verr)
	assert.Empty(t, token, "the rejected token must not survive")
	assert.Empty(t, docs.CurrentUser())
	assert.Equal(t, 1, nav.loginCount(), "a rejected token routes to login")
}

func TestInitialize_ConcurrentCallsCoalesce(t *testing.T) {
	release := make(chan struct{})
	b := &fakeBackend{
		validateResp: authResponse(),
		validateHook: func() { <-release },
	}
	c, vault, _, _, _ := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.Initialize(context.Background())
		}()
	}
	// Let the goroutines pile in before the backend answers.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, b.calls().validateCalls, "concurrent initialization shares one attempt")
	assert.True(t, c.Authenticated())
}

func TestInitiateGoogleAuth_PersistsStateAndRedirects(t *testing.T) {
	b := &fakeBackend{
		initiateResp: &backend.InitiateResponse{
			AuthorizationURL: "https://accounts.google.com/o/oauth2/auth?x=1",
			State:            testState,
		},
	}
	c, vault, nav, _, _ := newTestController(b)

	require.NoError(t, c.InitiateGoogleAuth(context.Background(), "/documents"))

	state, err := vault.OAuthState()
	require.NoError(t, err)
	assert.Equal(t, testState, state)
	ret, err := vault.ReturnURL()
	require.NoError(t, err)
	assert.Equal(t, "/documents", ret)
	assert.Equal(t, "https://accounts.google.com/o/oauth2/auth?x=1", nav.lastTarget())
}

func TestHandleGoogleCallback_Success(t *testing.T) {
	b := &fakeBackend{callbackResp: authResponse()}
	c, vault, nav, rec, docs := newTestController(b)
	require.NoError(t, vault.SetOAuthState(testState))
	require.NoError(t, vault.SetReturnURL("/documents"))

	require.NoError(t, c.HandleGoogleCallback(context.Background(), "code-1", testState))

	assert.True(t, c.Authenticated())
	token, err := vault.Token()
	require.NoError(t, err)
	assert.Equal(t, testToken, token)
	assert.Equal(t, testUserID, docs.CurrentUser())
	assert.Equal(t, "/documents", nav.lastTarget())
	require.Len(t, rec.ByLevel(notify.LevelSuccess), 1)

	state, err := vault.OAuthState()
	require.NoError(t, err)
	assert.Empty(t, state, "the one-time state is consumed")
	ret, err := vault.ReturnURL()
	require.NoError(t, err)
	assert.Empty(t, ret)
}

func TestHandleGoogleCallback_DefaultReturnURL(t *testing.T) {
	b := &fakeBackend{callbackResp: authResponse()}
	c, vault, nav, _, _ := newTestController(b)
	require.NoError(t, vault.SetOAuthState(testState))

	require.NoError(t, c.HandleGoogleCallback(context.Background(), "code-1", testState))

	assert.Equal(t, "/", nav.lastTarget())
}

func TestHandleGoogleCallback_StateMismatch(t *testing.T) {
	b := &fakeBackend{callbackResp: authResponse()}
	c, vault, nav, rec, _ := newTestController(b)
	require.NoError(t, vault.SetOAuthState(testState))

	err := c.HandleGoogleCallback(context.Background(), "code-1", "forged-state")

	require.ErrorIs(t, err, errclass.ErrOAuthFlow)
	assert.False(t, c.Authenticated())
	assert.Zero(t, b.calls().callbackCalls, "no code exchange on a forged state")
	assert.Equal(t, 1, nav.loginCount())
	assert.Len(t, rec.ByLevel(notify.LevelError), 1)

	state, verr := vault.OAuthState()
	require.NoError(t, verr)
	assert.Empty(t, state, "the scratch value is removed even on mismatch")
}

func TestHandleGoogleCallback_RaceWithClearDropsToken(t *testing.T) {
	b := &fakeBackend{callbackResp: authResponse()}
	c, vault, _, _, docs := newTestController(b)
	require.NoError(t, vault.SetOAuthState(testState))

	// A logout lands while the code exchange is in flight. The late result
	// must be dropped entirely: no in-memory session, and no token left in
	// the vault for the next startup to silently sign back in with.
	b.callbackHook = func() { c.ClearSession() }

	require.NoError(t, c.HandleGoogleCallback(context.Background(), "code-1", testState))

	assert.False(t, c.Authenticated())
	token, err := vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token, "the cleared vault must stay cleared")
	assert.Empty(t, docs.CurrentUser())
}

func TestHandleGoogleCallback_MissingStoredState(t *testing.T) {
	b := &fakeBackend{callbackResp: authResponse()}
	c, _, nav, _, _ := newTestController(b)

	err := c.HandleGoogleCallback(context.Background(), "code-1", testState)

	require.ErrorIs(t, err, errclass.ErrOAuthFlow)
	assert.Zero(t, b.calls().callbackCalls)
	assert.Equal(t, 1, nav.loginCount())
}

func TestHandleGoogleCallback_ExchangeFailure(t *testing.T) {
	b := &fakeBackend{
		callbackErr: &backend.APIError{Status: http.StatusBadRequest, Code: "oauth_exchange_failed"},
	}
	c, vault, nav, rec, _ := newTestController(b)
	require.NoError(t, vault.SetOAuthState(testState))

	err := c.HandleGoogleCallback(context.Background(), "code-1", testState)

	require.Error(t, err)
	assert.False(t, c.Authenticated())
	assert.Equal(t, 1, nav.loginCount())
	assert.Len(t, rec.ByLevel(notify.LevelError), 1)
}

func TestLogout_BackendFailureStillClearsLocally(t *testing.T) {
	b := &fakeBackend{
		validateResp: authResponse(),
		logoutErr:    context.DeadlineExceeded,
	}
	c, vault, nav, rec, docs := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))
	require.NoError(t, c.Initialize(context.Background()))
	require.True(t, c.Authenticated())

	require.NoError(t, c.Logout(context.Background()))

	assert.False(t, c.Authenticated())
	token, err := vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Empty(t, docs.CurrentUser())
	assert.Equal(t, 1, nav.loginCount())
	assert.Len(t, rec.ByLevel(notify.LevelSuccess), 1)
	assert.Equal(t, 1, b.calls().logoutCalls, "revocation attempted despite the failure")
}

func TestLogout_WithoutSessionSkipsBackend(t *testing.T) {
	b := &fakeBackend{}
	c, _, nav, _, _ := newTestController(b)

	require.NoError(t, c.Logout(context.Background()))

	assert.Zero(t, b.calls().logoutCalls)
	assert.Equal(t, 1, nav.loginCount())
}

func TestClearSession_Idempotent(t *testing.T) {
	b := &fakeBackend{validateResp: authResponse()}
	c, vault, _, _, docs := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))
	require.NoError(t, c.Initialize(context.Background()))

	c.ClearSession()
	before := c.Snapshot()
	c.ClearSession()
	after := c.Snapshot()

	assert.False(t, after.Authenticated)
	assert.Nil(t, after.User)
	assert.Nil(t, after.Session)
	assert.Greater(t, after.Epoch, before.Epoch, "every clear advances the identity generation")
	assert.Empty(t, docs.CurrentUser())
}

func TestSnapshot_IsDetachedCopy(t *testing.T) {
	b := &fakeBackend{validateResp: authResponse()}
	c, vault, _, _, _ := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))
	require.NoError(t, c.Initialize(context.Background()))

	snap := c.Snapshot()
	require.NotNil(t, snap.User)
	snap.User.Email = "tampered@example.com"
	snap.Session.Token = "tampered"

	fresh := c.Snapshot()
	assert.Equal(t, testEmail, fresh.User.Email)
	assert.Equal(t, testToken, fresh.Session.Token)
}

func TestRefreshTokens_RotatesAndPersists(t *testing.T) {
	rotated := authResponse()
	rotated.SessionToken = "tok-session-2"
	b := &fakeBackend{validateResp: authResponse(), refreshResp: rotated}
	c, vault, _, _, _ := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))
	require.NoError(t, c.Initialize(context.Background()))

	require.NoError(t, c.RefreshTokens(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, "tok-session-2", snap.Token)
	token, err := vault.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok-session-2", token, "the rotated token replaces the persisted one")
}

func TestRefreshTokens_FailureLogsOut(t *testing.T) {
	b := &fakeBackend{
		validateResp: authResponse(),
		refreshErr:   &backend.APIError{Status: http.StatusUnauthorized, Code: "refresh_failed"},
	}
	c, vault, nav, _, _ := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))
	require.NoError(t, c.Initialize(context.Background()))

	err := c.RefreshTokens(context.Background())

	require.ErrorIs(t, err, errclass.ErrRefreshFailed)
	assert.False(t, c.Authenticated())
	assert.Equal(t, 1, nav.loginCount())
	token, verr := vault.Token()
	require.NoError(t, verr)
	assert.Empty(t, token)
}

func TestRefreshTokens_Unauthenticated(t *testing.T) {
	b := &fakeBackend{}
	c, _, _, _, _ := newTestController(b)

	err := c.RefreshTokens(context.Background())

	require.ErrorIs(t, err, errclass.ErrTokenMissing)
	assert.Zero(t, b.calls().refreshCalls)
}

func TestInitialize_StaleResultDropped(t *testing.T) {
	b := &fakeBackend{validateResp: authResponse()}
	c, vault, _, _, docs := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))

	// The identity changes while the validation round-trip is in flight; the
	// late result must be dropped, not adopted.
	b.validateHook = func() { c.ClearSession() }

	require.NoError(t, c.Initialize(context.Background()))

	assert.False(t, c.Authenticated())
	assert.Empty(t, docs.CurrentUser())
	token, err := vault.Token()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRegisterStore_BindsCurrentIdentity(t *testing.T) {
	b := &fakeBackend{validateResp: authResponse()}
	c, vault, _, _, _ := newTestController(b)
	require.NoError(t, vault.SetToken(testToken))
	require.NoError(t, c.Initialize(context.Background()))

	late := userdata.NewAnalysisStore()
	c.RegisterStore(late)

	assert.Equal(t, testUserID, late.CurrentUser())
}
