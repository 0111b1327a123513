// Package prometheus implements the metrics collector port with
// Prometheus instruments registered via promauto.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsStarted    *prometheus.CounterVec
	runsCompleted  *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	nodesExecuted  *prometheus.CounterVec
	nodeDuration   *prometheus.HistogramVec
	tokensStreamed *prometheus.CounterVec
	payloadsSent   *prometheus.CounterVec
	activeStreams  prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector and registers
// its instruments with the default registry.
func NewCollector() *Collector {
	return &Collector{
		runsStarted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polichat_runs_started_total",
				Help: "Total number of pipeline runs started",
			},
			[]string{"intent"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polichat_runs_completed_total",
				Help: "Total number of pipeline runs finished",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polichat_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polichat_nodes_executed_total",
				Help: "Total number of graph nodes executed",
			},
			[]string{"node", "status"},
		),
		nodeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "polichat_node_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"node"},
		),
		tokensStreamed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polichat_tokens_streamed_total",
				Help: "Total number of LLM tokens streamed to clients",
			},
			[]string{"node"},
		),
		payloadsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "polichat_payloads_emitted_total",
				Help: "Total number of client payloads emitted",
			},
			[]string{"type"},
		),
		activeStreams: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "polichat_active_streams",
				Help: "Number of currently open payload streams",
			},
		),
	}
}

// RunStarted records the start of a pipeline run.
func (c *Collector) RunStarted(intent string) {
	c.runsStarted.WithLabelValues(intent).Inc()
}

// RunCompleted records a finished run and its duration.
func (c *Collector) RunCompleted(status string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// NodeExecuted records one node execution.
func (c *Collector) NodeExecuted(node, status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(node, status).Inc()
	c.nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

// TokenStreamed counts one streamed token.
func (c *Collector) TokenStreamed(node string) {
	c.tokensStreamed.WithLabelValues(node).Inc()
}

// PayloadEmitted counts one payload delivered to a consumer.
func (c *Collector) PayloadEmitted(payloadType string) {
	c.payloadsSent.WithLabelValues(payloadType).Inc()
}

// IncActiveStreams marks a payload stream opened.
func (c *Collector) IncActiveStreams() {
	c.activeStreams.Inc()
}

// DecActiveStreams marks a payload stream closed.
func (c *Collector) DecActiveStreams() {
	c.activeStreams.Dec()
}
