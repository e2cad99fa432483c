package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/crewdeck/pkg/tenant"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Tenant resolution metrics
	TenantResolutionsTotal  *prometheus.CounterVec
	TenantUnresolvedTotal   prometheus.Counter
	TenantSwitchesTotal     prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Business metrics
	OrganizationsTotal prometheus.Gauge
	ProjectsTotal      prometheus.Gauge
	TasksTotal         prometheus.Gauge
	ActiveUsersTotal   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdeck_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewdeck_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crewdeck_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdeck_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"entity", "ability", "outcome"},
		),

		TenantResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crewdeck_tenant_resolutions_total",
				Help: "Total number of successful tenant resolutions",
			},
			[]string{"source"},
		),
		TenantUnresolvedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crewdeck_tenant_unresolved_total",
				Help: "Total number of requests with no resolvable tenant",
			},
		),
		TenantSwitchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "crewdeck_tenant_switches_total",
				Help: "Total number of explicit organization switches",
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdeck_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdeck_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		OrganizationsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdeck_organizations_total",
				Help: "Total number of organizations",
			},
		),
		ProjectsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdeck_projects_total",
				Help: "Total number of projects",
			},
		),
		TasksTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdeck_tasks_total",
				Help: "Total number of tasks",
			},
		),
		ActiveUsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "crewdeck_active_users_total",
				Help: "Total number of active users",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthzDecisionsTotal,
		m.TenantResolutionsTotal,
		m.TenantUnresolvedTotal,
		m.TenantSwitchesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.OrganizationsTotal,
		m.ProjectsTotal,
		m.TasksTotal,
		m.ActiveUsersTotal,
	)

	return m
}

// AuthzDecision implements the authorization engine's observer interface
func (m *Metrics) AuthzDecision(entity, ability string, allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(entity, ability, outcome).Inc()
}

// TenantResolved implements the tenant resolver's observer interface
func (m *Metrics) TenantResolved(source tenant.Source) {
	m.TenantResolutionsTotal.WithLabelValues(string(source)).Inc()
}

// TenantUnresolved implements the tenant resolver's observer interface
func (m *Metrics) TenantUnresolved() {
	m.TenantUnresolvedTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
