package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghactivity_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghactivity_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	cacheSizeBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ghactivity_cache_written_bytes_total",
		Help: "Total bytes written to the response cache",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ghactivity_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // "get", "set", "delete"
)
