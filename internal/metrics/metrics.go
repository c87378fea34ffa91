// Package metrics registers the Prometheus metrics for the sync
// pipeline. Business metrics are updated from the service layer;
// the HTTP layer exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncRunsTotal counts sync runs by terminal outcome
	// (completed, unauthenticated, unauthorized, listing_failed).
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoatlas_sync_runs_total",
			Help: "Number of Drive sync runs by outcome",
		},
		[]string{"outcome"},
	)

	// SyncFilesTotal counts per-file outcomes within runs
	// (processed, skipped, errored).
	SyncFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoatlas_sync_files_total",
			Help: "Number of Drive files handled during sync by outcome",
		},
		[]string{"outcome"},
	)

	// GeocodeLookupsTotal counts reverse-geocoding lookups by result
	// (resolved, empty).
	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoatlas_geocode_lookups_total",
			Help: "Number of reverse-geocoding lookups by result",
		},
		[]string{"result"},
	)
)
