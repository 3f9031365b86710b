// Package health provides readiness state tracking and HTTP health check
// handlers for the agent's local API.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// Checker tracks the readiness of the agent. Readiness has two inputs: the
// lifecycle state set by the run loop, and an optional probe consulted on
// every check. The agent wires the auth controller's loading flag into the
// probe so readiness dips back to "restoring" whenever a session restore is
// in flight, instead of reporting a stale ready.
// Safe for concurrent use.
type Checker struct {
	state atomic.Int32
	probe atomic.Value // func() bool
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// SetProbe installs the readiness probe. A nil or absent probe leaves
// readiness driven by the lifecycle state alone.
func (c *Checker) SetProbe(probe func() bool) {
	if probe != nil {
		c.probe.Store(probe)
	}
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready and the probe, if any,
// agrees.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady && c.probeOK()
}

func (c *Checker) probeOK() bool {
	probe, ok := c.probe.Load().(func() bool)
	if !ok {
		return true
	}
	return probe()
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		if !c.probeOK() {
			return "restoring"
		}
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// LivenessHandler returns an http.HandlerFunc that always responds 200 OK.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler returns an http.HandlerFunc that responds 200 once the
// agent has settled its session state and 503 while starting, restoring or
// draining.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if c.IsReady() {
			writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
