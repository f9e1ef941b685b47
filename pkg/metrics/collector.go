package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates received labeled by kind and status",
		},
		[]string{"kind", "status"},
	)
	updateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "update_duration_seconds",
			Help:    "Duration of update handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	flowEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flow_events_total",
			Help: "Flow lifecycle events (started, completed, cancelled, failed) by flow",
		},
		[]string{"flow", "event"},
	)
	activeFlows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_flows",
			Help: "Current number of live flow records per flow",
		},
		[]string{"flow"},
	)
	stateEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "state_evictions_total",
			Help: "Total number of flow records evicted by the TTL sweep",
		},
	)
	rpcDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solana_rpc_duration_seconds",
			Help:    "Duration of Solana RPC calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
	protocolDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flipflop_call_duration_seconds",
			Help:    "Duration of flipflop protocol calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by code and severity",
		},
		[]string{"code", "severity"},
	)
)

// RecordUpdate increments update counters and records handling duration.
func RecordUpdate(kind, status string, duration time.Duration) {
	if kind == "" {
		kind = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botUpdatesTotal.WithLabelValues(kind, status).Inc()
	updateDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFlowEvent tracks flow lifecycle transitions.
func RecordFlowEvent(flow, event string) {
	if flow == "" {
		flow = "unknown"
	}

	flowEventsTotal.WithLabelValues(flow, event).Inc()
}

// SetActiveFlows updates the live-record gauge for a flow.
func SetActiveFlows(flow string, count int) {
	activeFlows.WithLabelValues(flow).Set(float64(count))
}

// RecordEvictions adds the sweep's eviction count.
func RecordEvictions(count int) {
	stateEvictionsTotal.Add(float64(count))
}

// RecordRPC records a Solana RPC call.
func RecordRPC(method, status string, duration time.Duration) {
	if method == "" {
		method = "unknown"
	}

	rpcDurationSeconds.WithLabelValues(method, status).Observe(duration.Seconds())
}

// RecordProtocolCall records a flipflop protocol call.
func RecordProtocolCall(operation, status string, duration time.Duration) {
	if operation == "" {
		operation = "unknown"
	}

	protocolDurationSeconds.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(code, severity string) {
	if code == "" {
		code = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(code, severity).Inc()
}
