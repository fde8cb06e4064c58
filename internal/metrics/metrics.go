// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for auth counters.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeUnknownEmail = "unknown_email"
	OutcomeBadPassword  = "bad_password"
	OutcomeError        = "error"
)

// Operation labels for users_mutations_total.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Metrics holds the custom instruments. A nil *Metrics is valid and records
// nothing, so components can be built without a registry.
type Metrics struct {
	LoginAttempts *prometheus.CounterVec
	Registrations *prometheus.CounterVec
	Logouts       prometheus.Counter
	UserMutations *prometheus.CounterVec
}

// NewRegistry returns a private registry with the standard Go and process
// collectors, to avoid polluting the global one.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// New creates and registers the custom metrics.
// Panics if registration fails (following prometheus convention).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_registrations_total",
				Help: "Registration attempts by outcome",
			},
			[]string{"outcome"},
		),
		Logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_logouts_total",
			Help: "Completed logouts",
		}),
		UserMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "users_mutations_total",
				Help: "Successful user store mutations by operation",
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(m.LoginAttempts, m.Registrations, m.Logouts, m.UserMutations)
	return m
}

// RegisterActiveSessions exposes a gauge that reads the live session count
// at scrape time.
func RegisterActiveSessions(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Unexpired sessions held by the session store",
		},
		func() float64 { return float64(count()) },
	))
}

// Handler serves the exposition format for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordLogout() {
	if m == nil {
		return
	}
	m.Logouts.Inc()
}

func (m *Metrics) RecordUserMutation(op string) {
	if m == nil {
		return
	}
	m.UserMutations.WithLabelValues(op).Inc()
}
