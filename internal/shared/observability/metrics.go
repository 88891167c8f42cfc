package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "includecut_graph_nodes_total",
		Help: "Number of files in the most recently built include graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "includecut_graph_edges_total",
		Help: "Number of include edges in the most recently built include graph.",
	})

	DatasetLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "includecut_dataset_load_seconds",
		Help:    "Time spent loading and parsing the include analysis.",
		Buckets: prometheus.DefBuckets,
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "includecut_analysis_seconds",
		Help:    "Time spent on high-level analysis tasks.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	CuttabilityBatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "includecut_cuttability_batches_total",
		Help: "Cuttability pre-filter batches by outcome (bounded, split).",
	}, []string{"result"})

	OracleRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "includecut_oracle_requests_total",
		Help: "Forward-declaration oracle requests by result (ok, cached, error, restart).",
	}, []string{"result"})

	SizeClampedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "includecut_size_clamped_total",
		Help: "Recalculated expanded sizes clamped to the original expanded size.",
	})
)
