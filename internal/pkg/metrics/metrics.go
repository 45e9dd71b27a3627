// Package metrics 提供 AI 路由与知识库的 Prometheus 指标。
//
// 所有记录方法对 nil 接收者安全，未启用指标时直接传 nil。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_router"

// Metrics 业务指标集合。
type Metrics struct {
	// 路由指标
	RouteTotal       *prometheus.CounterVec
	RouteDuration    *prometheus.HistogramVec
	ClassifyDuration *prometheus.HistogramVec
	ClassifyTier     *prometheus.CounterVec
	Confidence       prometheus.Histogram
	ChatTotal        *prometheus.CounterVec

	// 熔断器指标
	CircuitState       prometheus.Gauge
	CircuitTransitions *prometheus.CounterVec

	// 知识库指标
	RAGQueries       *prometheus.CounterVec
	RAGRetrieval     prometheus.Histogram
	RAGIngest        *prometheus.CounterVec
	RAGChunksIndexed prometheus.Counter

	// 后台任务池指标
	PoolRejected *prometheus.CounterVec
}

// New 在 reg 上注册全部指标，reg 为 nil 时使用独立的注册表。
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RouteTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Routed requests by final status",
		}, []string{"status"}),
		RouteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "request_duration_seconds",
			Help:      "End-to-end routing latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"}),
		ClassifyDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "classify_duration_seconds",
			Help:      "Model classification latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"model"}),
		ClassifyTier: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "classify_parse_total",
			Help:      "Classification results by parse tier",
		}, []string{"tier"}),
		Confidence: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "confidence",
			Help:      "Distribution of classification confidence",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		}),
		ChatTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "chat_total",
			Help:      "Free-form replies by path and outcome",
		}, []string{"path", "outcome"}),
		CircuitState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
		}),
		CircuitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker state transitions",
		}, []string{"from", "to"}),
		RAGQueries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "queries_total",
			Help:      "Knowledge base questions by result",
		}, []string{"result"}),
		RAGRetrieval: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "retrieval_duration_seconds",
			Help:      "Lexical retrieval latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RAGIngest: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "ingest_total",
			Help:      "Document ingestion attempts by outcome",
		}, []string{"outcome"}),
		RAGChunksIndexed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rag",
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the knowledge base",
		}),
		PoolRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "fallback_total",
			Help:      "Background tasks that bypassed the worker pool",
		}, []string{"pool"}),
	}
}

// RecordRoute 记录一次路由结果。
func (m *Metrics) RecordRoute(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RouteTotal.WithLabelValues(status).Inc()
	m.RouteDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordClassification 记录分类耗时、解析层级和置信度。
func (m *Metrics) RecordClassification(model, tier string, confidence float64, d time.Duration) {
	if m == nil {
		return
	}
	m.ClassifyDuration.WithLabelValues(model).Observe(d.Seconds())
	m.ClassifyTier.WithLabelValues(tier).Inc()
	m.Confidence.Observe(confidence)
}

// RecordChat 记录自由回复，path 为 direct_answer/general_chat/fallback_chat/rag。
func (m *Metrics) RecordChat(path string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ChatTotal.WithLabelValues(path, outcome).Inc()
}

// RecordCircuitTransition 记录熔断器状态变化，state 取值同 CircuitState。
func (m *Metrics) RecordCircuitTransition(from, to string, state int) {
	if m == nil {
		return
	}
	m.CircuitTransitions.WithLabelValues(from, to).Inc()
	m.CircuitState.Set(float64(state))
}

// RecordRAGQuery 记录知识库问答结果：cache_hit/answered/no_answer/error。
func (m *Metrics) RecordRAGQuery(result string) {
	if m == nil {
		return
	}
	m.RAGQueries.WithLabelValues(result).Inc()
}

// RecordRetrieval 记录检索耗时。
func (m *Metrics) RecordRetrieval(d time.Duration) {
	if m == nil {
		return
	}
	m.RAGRetrieval.Observe(d.Seconds())
}

// RecordIngest 记录文档入库：indexed/duplicate/rejected/error。
func (m *Metrics) RecordIngest(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.RAGIngest.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		m.RAGChunksIndexed.Add(float64(chunks))
	}
}

// RecordPoolFallback 记录绕过任务池的后台任务。
func (m *Metrics) RecordPoolFallback(pool string) {
	if m == nil {
		return
	}
	m.PoolRejected.WithLabelValues(pool).Inc()
}
