// Package metrics holds the Prometheus collectors of the authorization
// pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	DecisionsTotal           *prometheus.CounterVec
	CredentialsTotal         *prometheus.CounterVec
	TenantResolutionFailures prometheus.Counter
	PermissionCheckDuration  *prometheus.HistogramVec
}

// New creates the collectors and registers them on registry. A nil
// registry leaves them unregistered, which is what tests want.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runtime_authz_decisions_total",
				Help: "Authorization decisions by outcome and HTTP status",
			},
			[]string{"outcome", "status"},
		),
		CredentialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runtime_authz_credentials_total",
				Help: "Classified credentials by kind",
			},
			[]string{"kind"},
		),
		TenantResolutionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "runtime_authz_tenant_resolution_failures_total",
				Help: "Tenant resolutions that failed and were treated as no tenant",
			},
		),
		PermissionCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runtime_authz_permission_check_duration_seconds",
				Help:    "Latency of permission store lookups",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"result"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.DecisionsTotal,
			m.CredentialsTotal,
			m.TenantResolutionFailures,
			m.PermissionCheckDuration,
		)
	}

	return m
}

func (m *Metrics) ObserveDecision(outcome string, status int) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(outcome, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveCredential(kind string) {
	if m == nil {
		return
	}
	m.CredentialsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveTenantFailure() {
	if m == nil {
		return
	}
	m.TenantResolutionFailures.Inc()
}

func (m *Metrics) ObservePermissionCheck(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.PermissionCheckDuration.WithLabelValues(result).Observe(d.Seconds())
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
