// Package metrics wires the engine's observability surface through
// github.com/prometheus/client_golang, grounded on the teacher's own
// go.mod (a transitive dependency via pebble) and promoted here to direct,
// concrete use instead of sitting unused.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the engine exposes. One Registry is
// created per server process by cmd/sutrad and shared by all of its shards
// (spec §9: "no ambient singleton").
type Registry struct {
	Reg *prometheus.Registry

	WriteLogAppended prometheus.Counter
	WriteLogDropped  prometheus.Counter
	WriteLogPending  prometheus.Gauge

	ReconcileIntervalMs prometheus.Gauge
	ReconcileBatchSize  prometheus.Histogram
	ReconcileCycles     prometheus.Counter

	VectorIndexSize prometheus.Gauge

	ProtocolRequests *prometheus.CounterVec
	ProtocolErrors   *prometheus.CounterVec

	EmbeddingFailures      prometheus.Counter
	CircuitBreakerOpenTrip prometheus.Counter

	ShardTxnCommitted prometheus.Counter
	ShardTxnAborted   prometheus.Counter

	ReasoningQueries       prometheus.Counter
	ReasoningLowConfidence prometheus.Counter
}

// New creates and registers a fresh collector set.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		Reg: reg,
		WriteLogAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_writelog_appended_total",
			Help: "Total entries appended to the in-memory write log.",
		}),
		WriteLogDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_writelog_dropped_total",
			Help: "Entries dropped under the evict-oldest write log policy.",
		}),
		WriteLogPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sutra_writelog_pending",
			Help: "Entries currently queued in the write log.",
		}),
		ReconcileIntervalMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sutra_reconcile_interval_ms",
			Help: "Current adaptive reconciliation interval in milliseconds.",
		}),
		ReconcileBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sutra_reconcile_batch_size",
			Help:    "Number of write log entries drained per reconciliation cycle.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ReconcileCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_reconcile_cycles_total",
			Help: "Total reconciliation cycles executed.",
		}),
		VectorIndexSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sutra_vector_index_size",
			Help: "Number of vectors currently held in the index.",
		}),
		ProtocolRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sutra_protocol_requests_total",
			Help: "Protocol requests handled, by request variant.",
		}, []string{"variant"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sutra_protocol_errors_total",
			Help: "Protocol errors returned, by error kind.",
		}, []string{"kind"}),
		EmbeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_embedding_failures_total",
			Help: "Embedding service call failures.",
		}),
		CircuitBreakerOpenTrip: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_embedding_circuit_breaker_open_total",
			Help: "Times the embedding circuit breaker tripped open.",
		}),
		ShardTxnCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_shard_txn_committed_total",
			Help: "Cross-shard 2PC transactions committed.",
		}),
		ShardTxnAborted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_shard_txn_aborted_total",
			Help: "Cross-shard 2PC transactions aborted.",
		}),
		ReasoningQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_reasoning_queries_total",
			Help: "Total reason() calls completed.",
		}),
		ReasoningLowConfidence: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sutra_reasoning_low_confidence_total",
			Help: "reason() calls that returned below the quality gate threshold.",
		}),
	}

	reg.MustRegister(
		r.WriteLogAppended, r.WriteLogDropped, r.WriteLogPending,
		r.ReconcileIntervalMs, r.ReconcileBatchSize, r.ReconcileCycles,
		r.VectorIndexSize,
		r.ProtocolRequests, r.ProtocolErrors,
		r.EmbeddingFailures, r.CircuitBreakerOpenTrip,
		r.ShardTxnCommitted, r.ShardTxnAborted,
		r.ReasoningQueries, r.ReasoningLowConfidence,
	)

	return r
}
