// Package metrics exposes Prometheus collectors for the agent's auth
// lifecycle.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the agent's collectors.
type Metrics struct {
	Logins           *prometheus.CounterVec
	Refreshes        *prometheus.CounterVec
	Logouts          prometheus.Counter
	IsolationPurges  prometheus.Counter
	ClassifiedErrors *prometheus.CounterVec
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian_agent",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian_agent",
			Name:      "token_refreshes_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guardian_agent",
			Name:      "logouts_total",
			Help:      "Completed logouts.",
		}),
		IsolationPurges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "guardian_agent",
			Name:      "isolation_purges_total",
			Help:      "User-scoped store purges triggered by identity changes.",
		}),
		ClassifiedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guardian_agent",
			Name:      "classified_errors_total",
			Help:      "Errors processed by the classifier, by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(m.Logins, m.Refreshes, m.Logouts, m.IsolationPurges, m.ClassifiedErrors)
	return m
}

// NewUnregistered creates the collectors without registering them; used in
// tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
