package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Round outcomes
const (
	RoundTool  = "tool"
	RoundFinal = "final"
	RoundGuard = "guard"
)

var (
	// Completion metrics
	activeCompletions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "llm_gateway_active_completions",
		Help: "Number of orchestration calls in flight",
	})

	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_completions_total",
		Help: "Total number of orchestration calls",
	}, []string{"endpoint_kind", "status"})

	completionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_gateway_completion_duration_seconds",
		Help:    "Wall-clock duration of orchestration calls in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	roundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_rounds_total",
		Help: "Completion rounds by outcome (tool, final, guard)",
	}, []string{"outcome"})

	tokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "llm_gateway_tokens_total",
		Help: "Tokens reported by backend usage metadata",
	})

	chunkParseErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "llm_gateway_chunk_parse_errors_total",
		Help: "Malformed SSE payloads skipped",
	})

	// Tool metrics
	toolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_tool_executions_total",
		Help: "Total number of tool executions",
	}, []string{"tool", "status"})

	toolLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_gateway_tool_latency_seconds",
		Help:    "Tool execution latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0},
	}, []string{"tool"})

	// Endpoint metrics
	endpointRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_endpoint_refresh_total",
		Help: "Model listing refreshes by source and status",
	}, []string{"source", "status"})

	endpointsKnown = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "llm_gateway_endpoints",
		Help: "Known endpoints by kind",
	}, []string{"kind"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "llm_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// CompletionMetrics tracks metrics for a single orchestration call
type CompletionMetrics struct {
	correlationID string
	endpointKind  string
	startTime     time.Time
	ended         bool
	mu            sync.Mutex
}

// NewCompletionMetrics creates a tracker and marks the call as active
func NewCompletionMetrics(correlationID, endpointKind string) *CompletionMetrics {
	activeCompletions.Inc()
	return &CompletionMetrics{
		correlationID: correlationID,
		endpointKind:  endpointKind,
		startTime:     time.Now(),
	}
}

// RecordEnd records the end of the call. Repeated calls are ignored.
func (m *CompletionMetrics) RecordEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ended {
		return
	}
	m.ended = true

	activeCompletions.Dec()
	completionDuration.Observe(time.Since(m.startTime).Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	completionsTotal.WithLabelValues(m.endpointKind, status).Inc()
}

// RecordRound records how a round ended
func (m *CompletionMetrics) RecordRound(outcome string) {
	roundsTotal.WithLabelValues(outcome).Inc()
}

// RecordTokens records backend-reported tokens
func (m *CompletionMetrics) RecordTokens(tokens int) {
	if tokens > 0 {
		tokensTotal.Add(float64(tokens))
	}
}

// RecordParseErrors records skipped SSE payloads
func (m *CompletionMetrics) RecordParseErrors(n int) {
	if n > 0 {
		chunkParseErrors.Add(float64(n))
	}
}

// RecordError records an error
func (m *CompletionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error outside a call
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordToolExecution records one tool run
func RecordToolExecution(tool string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	toolExecutions.WithLabelValues(tool, status).Inc()
	toolLatency.WithLabelValues(tool).Observe(latency.Seconds())
}

// RecordEndpointRefresh records one model listing refresh
func RecordEndpointRefresh(source string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	endpointRefreshes.WithLabelValues(source, status).Inc()
}

// SetEndpointCount publishes the number of endpoints of a kind
func SetEndpointCount(kind string, n int) {
	endpointsKnown.WithLabelValues(kind).Set(float64(n))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
