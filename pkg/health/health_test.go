package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_StateTransitions(t *testing.T) {
	c := NewChecker()

	assert.Equal(t, "starting", c.State())
	assert.False(t, c.IsReady())

	c.SetReady()
	assert.Equal(t, "ready", c.State())
	assert.True(t, c.IsReady())

	c.SetDraining()
	assert.Equal(t, "draining", c.State())
	assert.False(t, c.IsReady())

	// A drained checker can come back, e.g. after a restarted initialize.
	c.SetReady()
	assert.True(t, c.IsReady())
}

func TestLivenessHandler_AlwaysOK(t *testing.T) {
	c := NewChecker()

	for _, setup := range []func(){func() {}, c.SetReady, c.SetDraining} {
		setup()

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
		c.LivenessHandler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*Checker)
		wantCode   int
		wantStatus string
	}{
		{"starting", func(*Checker) {}, http.StatusServiceUnavailable, "starting"},
		{"ready", (*Checker).SetReady, http.StatusOK, "ready"},
		{"draining", func(c *Checker) { c.SetReady(); c.SetDraining() }, http.StatusServiceUnavailable, "draining"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			tt.setup(c)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
			c.ReadinessHandler().ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)

			var resp healthResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
		})
	}
}

func TestChecker_ProbeGatesReadiness(t *testing.T) {
	c := NewChecker()
	var restoring atomic.Bool
	c.SetProbe(func() bool { return !restoring.Load() })

	c.SetReady()
	assert.True(t, c.IsReady())
	assert.Equal(t, "ready", c.State())

	// A session restore kicks off; readiness dips without a state change.
	restoring.Store(true)
	assert.False(t, c.IsReady())
	assert.Equal(t, "restoring", c.State())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	c.ReadinessHandler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	restoring.Store(false)
	assert.True(t, c.IsReady())
}

func TestChecker_NilProbeIgnored(t *testing.T) {
	c := NewChecker()
	c.SetProbe(nil)
	c.SetReady()
	assert.True(t, c.IsReady())
}

func TestChecker_ConcurrentAccess(t *testing.T) {
	c := NewChecker()

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(3)
		go func() { defer wg.Done(); c.SetReady() }()
		go func() { defer wg.Done(); c.SetDraining() }()
		go func() { defer wg.Done(); _ = c.IsReady(); _ = c.State() }()
	}
	wg.Wait()

	assert.Contains(t, []string{"ready", "draining"}, c.State())
}
