// Package server provides the agent's loopback HTTP API: health probes,
// Prometheus metrics, and a session status endpoint for the UI shell. The
// session token itself is never exposed over this surface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yusufmo1/GUARDIAN-sub000/pkg/authstate"
	"github.com/yusufmo1/GUARDIAN-sub000/pkg/health"
)

// Version is set at build time.
var Version = "dev"

// Config configures the local HTTP server.
type Config struct {
	// Address to listen on; loopback only in normal deployments.
	Address string
}

// Server is the agent's local HTTP API.
type Server struct {
	http    *http.Server
	checker *health.Checker
}

// New assembles the router and server.
func New(cfg Config, auth *authstate.Controller, checker *health.Checker, gatherer prometheus.Gatherer) *Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", checker.LivenessHandler())
	r.Get("/readyz", checker.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/session", sessionHandler(auth))
	r.Get("/version", versionHandler)

	return &Server{
		http: &http.Server{
			Addr:              cfg.Address,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		checker: checker,
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	slog.Info("local api listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.checker.SetDraining()
	return s.http.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// sessionStatus is the JSON shape of GET /session.
type sessionStatus struct {
	Authenticated bool      `json:"authenticated"`
	UserID        string    `json:"user_id,omitempty"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

func sessionHandler(auth *authstate.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := auth.Snapshot()

		status := sessionStatus{Authenticated: snap.Authenticated}
		if snap.User != nil {
			status.UserID = snap.User.ID
			status.Email = snap.User.Email
			status.Name = snap.User.Name
		}
		if snap.Session != nil {
			status.ExpiresAt = snap.Session.ExpiresAt
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": Version})
}
