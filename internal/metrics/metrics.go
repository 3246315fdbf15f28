// Package metrics define las métricas Prometheus del servidor. Cada Metrics se registra
// en su propio Registerer para que los tests no compartan estado global.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	codesCreated *prometheus.CounterVec
	codesUsed    *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	gcDeleted    *prometheus.CounterVec
}

// New crea las métricas sobre un registry nuevo, con los collectors de proceso y de Go.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		httpInflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"}),
		codesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_codes_created_total",
			Help: "Verification codes creados por tipo",
		}, []string{"type"}),
		codesUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "verification_codes_used_total",
			Help: "Canjes de verification codes por tipo y resultado (ok o código de error)",
		}, []string{"type", "outcome"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Tokens emitidos por tipo",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rechazadas por el rate limiter",
		}, []string{"path"}),
		gcDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gc_deleted_rows_total",
			Help: "Filas expiradas borradas por el sweep",
		}, []string{"table"}),
	}
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal, m.httpRequestDuration, m.httpInflight,
		m.codesCreated, m.codesUsed, m.tokensIssued, m.rateLimited, m.gcDeleted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register agrega un collector externo (p.ej. el de pools de pgx).
func (m *Metrics) Register(c prometheus.Collector) error {
	if err := m.registry.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CodeCreated(codeType string) {
	m.codesCreated.WithLabelValues(codeType).Inc()
}

func (m *Metrics) CodeUsed(codeType, outcome string) {
	m.codesUsed.WithLabelValues(codeType, outcome).Inc()
}

func (m *Metrics) TokenIssued(kind string) {
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *Metrics) RateLimited(path string) {
	m.rateLimited.WithLabelValues(path).Inc()
}

func (m *Metrics) RowsDeleted(table string, n int64) {
	m.gcDeleted.WithLabelValues(table).Add(float64(n))
}
