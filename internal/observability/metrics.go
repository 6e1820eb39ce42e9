package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	backendCallTotal    *prometheus.CounterVec
	backendCallDuration *prometheus.HistogramVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	formatRetryTotal          prometheus.Counter
	iterationsExhaustedTotal  prometheus.Counter
	streamFragmentsTotal      prometheus.Counter
	transcriptMessagesCurrent *prometheus.GaugeVec
}

// namespace prefixes every metric so registration on the default registerer
// cannot collide with the importing program's own collectors.
const namespace = "agentkit"

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			backendCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "backend_calls_total",
					Help:      "Total chat-completion calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			backendCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "backend_call_duration_seconds",
					Help:      "Duration of chat-completion calls by provider.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_executions_total",
					Help:      "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "tool_execution_duration_seconds",
					Help:      "Duration of tool executions by tool.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			formatRetryTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "response_format_retries_total",
					Help:      "Total corrective retries after JSON format validation failures.",
				},
			),
			iterationsExhaustedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "iterations_exhausted_total",
					Help:      "Total calls terminated by the iteration cap.",
				},
			),
			streamFragmentsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "stream_fragments_total",
					Help:      "Total streamed fragments forwarded to consumers.",
				},
			),
			transcriptMessagesCurrent: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "transcript_messages",
					Help:      "Current transcript length by session.",
				},
				[]string{"session"},
			),
		}

		// Registering on the default registerer means the importing
		// program's existing promhttp endpoint exposes these metrics with no
		// extra wiring.
		prometheus.DefaultRegisterer.MustRegister(
			m.backendCallTotal,
			m.backendCallDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.formatRetryTotal,
			m.iterationsExhaustedTotal,
			m.streamFragmentsTotal,
			m.transcriptMessagesCurrent,
		)

		metricsInst = m
	})
	return metricsInst
}

// EnsureRegistered forces metric registration; safe to call repeatedly.
func EnsureRegistered() {
	getMetrics()
}

// Handler serves the default gatherer, module metrics included, for programs
// without a metrics endpoint of their own.
func Handler() http.Handler {
	getMetrics()
	return promhttp.Handler()
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordBackendCall records one chat-completion round trip.
func RecordBackendCall(provider string, duration time.Duration, ok bool) {
	m := getMetrics()
	m.backendCallTotal.WithLabelValues(provider, statusLabel(ok)).Inc()
	m.backendCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordToolExecution records one tool dispatch.
func RecordToolExecution(tool string, duration time.Duration, ok bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(ok)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordFormatRetry records a corrective retry after invalid JSON content.
func RecordFormatRetry() {
	getMetrics().formatRetryTotal.Inc()
}

// RecordIterationsExhausted records a call cut off by the iteration cap.
func RecordIterationsExhausted() {
	getMetrics().iterationsExhaustedTotal.Inc()
}

// RecordStreamFragment records one forwarded fragment.
func RecordStreamFragment() {
	getMetrics().streamFragmentsTotal.Inc()
}

// SetTranscriptLength tracks the transcript size for a session.
func SetTranscriptLength(sessionID string, length int) {
	getMetrics().transcriptMessagesCurrent.WithLabelValues(sessionID).Set(float64(length))
}
