// Package telemetry holds the service's prometheus collectors. Counters
// live here so the ordering engine and store can increment them without
// knowing about the HTTP layer; /metrics is mounted by the app.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Moves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideaflow_moves_total",
		Help: "Single-post moves resolved and committed.",
	})
	Reorders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideaflow_reorders_total",
		Help: "Bulk reorders committed.",
	})
	ReorderWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideaflow_reorder_writes_total",
		Help: "Rows rewritten by bulk reorders (write amplification).",
	})
	CommitConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideaflow_commit_conflicts_total",
		Help: "Optimistic commits rejected because a verified row changed.",
	})
	Rebalances = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideaflow_rebalances_total",
		Help: "Neighborhood key rebalances forced by keyspace exhaustion.",
	})
	IdemReplays = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ideaflow_idempotent_replays_total",
		Help: "Creation requests answered from a stored idempotency record.",
	})
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ideaflow_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
	StoreWALBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ideaflow_store_wal_bytes",
		Help: "Current pebble WAL size in bytes.",
	})
	StoreDiskBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ideaflow_store_disk_bytes",
		Help: "Total pebble on-disk usage in bytes.",
	})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
