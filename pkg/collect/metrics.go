package collect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsCollectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_records_collected_total",
		Help: "Records produced by adapters before deduplication",
	}, []string{"source"})

	recordsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghactivity_records_merged_total",
		Help: "Duplicate records absorbed during aggregation",
	})

	searchBisectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghactivity_search_bisections_total",
		Help: "Search date ranges split for exceeding the result cap",
	})

	sourceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_source_failures_total",
		Help: "Adapter runs that ended in a warning",
	}, []string{"source"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_runs_total",
		Help: "Collection runs by final state",
	}, []string{"state"})
)
