package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Decision engine metrics
	PermissionChecksTotal *prometheus.CounterVec
	QuotaChecksTotal      *prometheus.CounterVec
	DecisionDuration      *prometheus.HistogramVec

	// Quota manager metrics
	QuotaMutationsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimitChecksTotal *prometheus.CounterVec

	// Storage metrics
	KVOperationsTotal   *prometheus.CounterVec
	KVOperationDuration *prometheus.HistogramVec

	// Audit metrics
	AuditAppendsTotal *prometheus.CounterVec

	// Bootstrap metrics
	BootstrapRunsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_permission_checks_total",
				Help: "Total number of permission checks",
			},
			[]string{"decision", "code"},
		),
		QuotaChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_quota_checks_total",
				Help: "Total number of quota checks",
			},
			[]string{"decision"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_decision_duration_seconds",
				Help:    "Decision evaluation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		QuotaMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_quota_mutations_total",
				Help: "Total number of quota manager mutations",
			},
			[]string{"operation", "status"},
		),
		RateLimitChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_ratelimit_checks_total",
				Help: "Total number of rate limit checks",
			},
			[]string{"tier", "outcome"},
		),
		KVOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_kv_operations_total",
				Help: "Total number of key-value store operations",
			},
			[]string{"operation", "status"},
		),
		KVOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_kv_operation_duration_seconds",
				Help:    "Key-value store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AuditAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_audit_appends_total",
				Help: "Total number of audit trail appends",
			},
			[]string{"action", "status"},
		),
		BootstrapRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_bootstrap_runs_total",
				Help: "Total number of bootstrap runs",
			},
			[]string{"phase", "status"},
		),
	}

	registry.MustRegister(
		m.PermissionChecksTotal,
		m.QuotaChecksTotal,
		m.DecisionDuration,
		m.QuotaMutationsTotal,
		m.RateLimitChecksTotal,
		m.KVOperationsTotal,
		m.KVOperationDuration,
		m.AuditAppendsTotal,
		m.BootstrapRunsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the registry's metrics.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
