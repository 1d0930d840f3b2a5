package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NodeMetrics tracks transaction execution and RPC traffic.
type NodeMetrics struct {
	transactions *prometheus.CounterVec
	failures     *prometheus.CounterVec
	instructions *prometheus.CounterVec
	execLatency  prometheus.Histogram
	events       *prometheus.CounterVec
	fees         prometheus.Counter
	slot         prometheus.Gauge
	rpcRequests  *prometheus.CounterVec
	rpcLatency   *prometheus.HistogramVec
	rpcThrottled prometheus.Counter
	indexErrors  prometheus.Counter
}

var (
	nodeOnce     sync.Once
	nodeRegistry *NodeMetrics
)

// Node returns the process-wide collectors registered on the default
// Prometheus registry.
func Node() *NodeMetrics {
	nodeOnce.Do(func() {
		nodeRegistry = NewNodeMetrics(prometheus.DefaultRegisterer)
	})
	return nodeRegistry
}

// NewNodeMetrics builds a collector set registered on reg. A nil reg leaves
// the collectors unregistered.
func NewNodeMetrics(reg prometheus.Registerer) *NodeMetrics {
	m := &NodeMetrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "transactions_total",
			Help:      "Transactions processed segmented by outcome.",
		}, []string{"outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "instruction_failures_total",
			Help:      "Failed instructions segmented by program and error code.",
		}, []string{"program", "code"}),
		instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "instructions_total",
			Help:      "Instructions of committed transactions segmented by program and instruction.",
		}, []string{"program", "instruction"}),
		execLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "execution_duration_seconds",
			Help:      "Wall time spent executing and committing a transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "events_total",
			Help:      "Program events emitted by committed transactions.",
		}, []string{"type"}),
		fees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "fees_lamports_total",
			Help:      "Lamports collected as transaction fees.",
		}),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memchain",
			Subsystem: "runtime",
			Name:      "slot",
			Help:      "Latest committed slot.",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "JSON-RPC requests segmented by method and outcome.",
		}, []string{"method", "outcome"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memchain",
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution for JSON-RPC handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		rpcThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "rpc",
			Name:      "throttled_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		indexErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memchain",
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Committed transactions the event indexer failed to record.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.transactions,
			m.failures,
			m.instructions,
			m.execLatency,
			m.events,
			m.fees,
			m.slot,
			m.rpcRequests,
			m.rpcLatency,
			m.rpcThrottled,
			m.indexErrors,
		)
	}
	return m
}

// ObserveTransaction records one executed transaction. program and code are
// only used for failures; code 0 means the error carried no program code.
func (m *NodeMetrics) ObserveTransaction(slot, fee uint64, failed bool, program string, code uint32, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failed"
		if program == "" {
			program = "unknown"
		}
		m.failures.WithLabelValues(program, strconv.FormatUint(uint64(code), 10)).Inc()
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.execLatency.Observe(elapsed.Seconds())
	m.fees.Add(float64(fee))
	m.slot.Set(float64(slot))
}

// ObserveRejected counts a transaction refused before execution.
func (m *NodeMetrics) ObserveRejected() {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues("rejected").Inc()
}

// ObserveInstruction counts an instruction of a committed transaction.
func (m *NodeMetrics) ObserveInstruction(program, instruction string) {
	if m == nil {
		return
	}
	if instruction == "" {
		instruction = "unknown"
	}
	m.instructions.WithLabelValues(program, instruction).Inc()
}

// ObserveEvent counts an emitted event.
func (m *NodeMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// ObserveRPC records a handled JSON-RPC call.
func (m *NodeMetrics) ObserveRPC(method string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveThrottled counts a rate-limited request.
func (m *NodeMetrics) ObserveThrottled() {
	if m == nil {
		return
	}
	m.rpcThrottled.Inc()
}

// ObserveIndexError counts an indexer write failure.
func (m *NodeMetrics) ObserveIndexError() {
	if m == nil {
		return
	}
	m.indexErrors.Inc()
}
