// Package observability exposes Prometheus metrics, health checks and
// OpenTelemetry tracing for the assistant.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Tool metrics
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenton_tool_calls_total",
			Help: "Total number of API tool calls",
		},
		[]string{"tool", "status"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kenton_tool_call_duration_seconds",
			Help:    "API tool call duration in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	toolRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenton_tool_retries_total",
			Help: "Total number of API tool request retries",
		},
		[]string{"tool"},
	)

	// Conversation store metrics
	conversationOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kenton_conversation_ops_total",
			Help: "Total number of conversation store operations",
		},
		[]string{"op", "backend", "outcome"},
	)

	conversationFallback = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kenton_conversation_backend_fallback",
			Help: "1 when the conversation store fell back to memory",
		},
	)

	// Assistant metrics
	assistantTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kenton_assistant_turn_duration_seconds",
			Help:    "End-to-end assistant turn duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			toolCallsTotal,
			toolCallDuration,
			toolRetriesTotal,
			conversationOpsTotal,
			conversationFallback,
			assistantTurnDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordToolCall records API tool call metrics
func RecordToolCall(tool, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordToolRetry counts one retried request
func RecordToolRetry(tool string) {
	toolRetriesTotal.WithLabelValues(tool).Inc()
}

// RecordConversationOp records a conversation store operation
func RecordConversationOp(op, backend, outcome string) {
	conversationOpsTotal.WithLabelValues(op, backend, outcome).Inc()
}

// SetConversationFallback marks whether the store runs on the fallback backend
func SetConversationFallback(fellBack bool) {
	if fellBack {
		conversationFallback.Set(1)
		return
	}
	conversationFallback.Set(0)
}

// RecordAssistantTurn records an assistant turn
func RecordAssistantTurn(status string, duration time.Duration) {
	assistantTurnDuration.WithLabelValues(status).Observe(duration.Seconds())
}
