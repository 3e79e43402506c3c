package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/faqbridge/faqbridge-backend/internal/platform/logger"
)

// Pinger is the connectivity probe surface of a backend client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Metrics is the process-wide metric set, injected rather than
// registered through package globals so tests can run with a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	nodeLatency *prometheus.HistogramVec
	nodeErrors  *prometheus.CounterVec

	cacheEvents *prometheus.CounterVec

	retrievalLatency *prometheus.HistogramVec
	retrievalDocs    prometheus.Histogram

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	dialogTransitions *prometheus.CounterVec
	guardrailEvents   *prometheus.CounterVec
	escalations       *prometheus.CounterVec

	redisUp prometheus.Gauge
	pgUp    prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faqbridge",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faqbridge",
			Subsystem: "api",
			Name:      "inflight_requests",
			Help:      "Requests currently being served",
		}),
		nodeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faqbridge",
			Subsystem: "pipeline",
			Name:      "node_latency_seconds",
			Help:      "Per-node dispatch latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}, []string{"node"}),
		nodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "pipeline",
			Name:      "node_errors_total",
			Help:      "Node failures by node and kind",
		}, []string{"node", "kind"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Response cache events by tier and outcome",
		}, []string{"tier", "event"}),
		retrievalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faqbridge",
			Subsystem: "retrieval",
			Name:      "latency_seconds",
			Help:      "Retrieval leg latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"leg"}),
		retrievalDocs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "faqbridge",
			Subsystem: "retrieval",
			Name:      "fused_docs",
			Help:      "Documents remaining after fusion",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Model calls by kind and status",
		}, []string{"kind", "status"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "faqbridge",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "Model call latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		dialogTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "dialog",
			Name:      "transitions_total",
			Help:      "Dialog state transitions by target state",
		}, []string{"state"}),
		guardrailEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "guardrails",
			Name:      "events_total",
			Help:      "Guardrail decisions by stage and action",
		}, []string{"stage", "action"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faqbridge",
			Subsystem: "dialog",
			Name:      "escalations_total",
			Help:      "Escalations recorded by reason",
		}, []string{"reason"}),
		redisUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faqbridge",
			Name:      "redis_up",
			Help:      "1 when the Redis ping succeeds",
		}),
		pgUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "faqbridge",
			Name:      "postgres_up",
			Help:      "1 when the Postgres ping succeeds",
		}),
	}

	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.nodeLatency, m.nodeErrors,
		m.cacheEvents,
		m.retrievalLatency, m.retrievalDocs,
		m.llmRequests, m.llmLatency,
		m.dialogTransitions, m.guardrailEvents, m.escalations,
		m.redisUp, m.pgUp,
	)
	return m
}

// Handler serves the exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveAPIRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) APIInflightAdd(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveNode(node string, d time.Duration) {
	if m == nil {
		return
	}
	m.nodeLatency.WithLabelValues(node).Observe(d.Seconds())
}

func (m *Metrics) NodeError(node, kind string) {
	if m == nil {
		return
	}
	m.nodeErrors.WithLabelValues(node, kind).Inc()
}

// CacheEvent records cache activity; tier is "exact", "semantic" or
// "memory"; event is "hit", "miss", "store", "error" or "sweep".
func (m *Metrics) CacheEvent(tier, event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(tier, event).Inc()
}

func (m *Metrics) ObserveRetrieval(leg string, d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalLatency.WithLabelValues(leg).Observe(d.Seconds())
}

func (m *Metrics) FusedDocs(n int) {
	if m == nil {
		return
	}
	m.retrievalDocs.Observe(float64(n))
}

func (m *Metrics) ObserveLLM(kind, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(kind, status).Inc()
	m.llmLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) DialogTransition(state string) {
	if m == nil {
		return
	}
	m.dialogTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) GuardrailEvent(stage, action string) {
	if m == nil {
		return
	}
	m.guardrailEvents.WithLabelValues(stage, action).Inc()
}

func (m *Metrics) Escalation(reason string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason).Inc()
}

// StartBackendProbes pings Redis and Postgres on an interval and keeps
// the up gauges current until ctx is cancelled.
func (m *Metrics) StartBackendProbes(ctx context.Context, log *logger.Logger, kv Pinger, db *gorm.DB, interval time.Duration) {
	if m == nil {
		return
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.probe(ctx, log, kv, db)
			}
		}
	}()
}

func (m *Metrics) probe(ctx context.Context, log *logger.Logger, kv Pinger, db *gorm.DB) {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if kv != nil {
		if err := kv.Ping(probeCtx); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("redis probe failed", "error", err)
			}
		} else {
			m.redisUp.Set(1)
		}
	}
	if db != nil {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(probeCtx)
		}
		if err != nil {
			m.pgUp.Set(0)
			if log != nil {
				log.Warn("postgres probe failed", "error", err)
			}
		} else {
			m.pgUp.Set(1)
		}
	}
}
