package metricsvc

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schoolportal"

// Metrics owns its registry so that tests and multiple servers do not collide on the default one.
type Metrics struct {
	registry *prometheus.Registry

	LoginAttempts      *prometheus.CounterVec
	CredentialUpgrades *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by account kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		CredentialUpgrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_upgrades_total",
				Help:      "Legacy passwords rewritten as hashes, by table.",
			},
			[]string{"table"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		m.LoginAttempts,
		m.CredentialUpgrades,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordLogin matches account.Service.OnLogin.
func (m *Metrics) RecordLogin(kind, outcome string) {
	m.LoginAttempts.WithLabelValues(kind, outcome).Inc()
}

// RecordUpgrade matches credential.Verifier.OnUpgrade.
func (m *Metrics) RecordUpgrade(table string, _ int64) {
	m.CredentialUpgrades.WithLabelValues(table).Inc()
}

func (m *Metrics) RecordRequest(method, route, status string, duration time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
