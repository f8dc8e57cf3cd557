// Package metrics defines Prometheus metrics for corpusgraph.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "corpusgraph_stage_duration_seconds",
			Help:    "Duration of search and clustering stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgraph_storage_errors_total",
			Help: "Total storage adapter errors by operation",
		},
		[]string{"op"},
	)

	VerticesFetched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corpusgraph_vertices_fetched_total",
			Help: "Vertices materialized from storage during extraction",
		},
	)

	NeighborFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgraph_neighbor_fetches_total",
			Help: "Neighbor lists requested during extraction, by cache result",
		},
		[]string{"result"},
	)

	WalkSteps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corpusgraph_walk_steps_total",
			Help: "Random walk steps taken",
		},
	)

	RankIterations = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "corpusgraph_rank_iterations",
			Help:    "Spreading activation rounds per ranking",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	SeparationPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "corpusgraph_separation_passes_total",
			Help: "Edge separation passes completed",
		},
	)

	DocumentsIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "corpusgraph_documents_indexed_total",
			Help: "Documents processed by the indexer, by outcome",
		},
		[]string{"outcome"},
	)

	SessionVertices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpusgraph_session_vertices",
			Help: "Resident vertices of the last search session",
		},
	)

	SessionEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "corpusgraph_session_edges",
			Help: "Resident edges of the last search session",
		},
	)
)

func init() {
	prometheus.MustRegister(
		StageDuration, StorageErrorsTotal,
		VerticesFetched, NeighborFetches, WalkSteps,
		RankIterations, SeparationPasses,
		DocumentsIndexed,
		SessionVertices, SessionEdges,
	)
}
