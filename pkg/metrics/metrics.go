// Package metrics centralizes Prometheus exposure for the collector.
// Individual metrics are defined in their owning packages (ratelimit,
// backoff, ghapi, cache, collect) via promauto to keep them next to
// the code they instrument.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all package metrics attach to.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler serving the default registry,
// mounted at /metrics by the CLI when requested.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metric reference:
//
// Quota (pkg/ratelimit):
//   - ghactivity_quota_remaining{pool} (Gauge)
//   - ghactivity_quota_denied_total{pool} (Counter)
//   - ghactivity_quota_updates_total{pool} (Counter)
//
// Backoff (pkg/backoff):
//   - ghactivity_backoff_delay_seconds{outcome} (Histogram)
//   - ghactivity_backoff_give_ups_total{outcome} (Counter)
//
// Transport (pkg/ghapi):
//   - ghactivity_requests_total{pool,status} (Counter)
//   - ghactivity_request_duration_seconds{pool} (Histogram)
//   - ghactivity_errors_total{class} (Counter)
//
// Cache (pkg/cache):
//   - ghactivity_cache_hits_total / _misses_total (Counter)
//   - ghactivity_cache_written_bytes_total (Counter)
//   - ghactivity_cache_errors_total{operation} (Counter)
//
// Collection (pkg/collect):
//   - ghactivity_records_collected_total{source} (Counter)
//   - ghactivity_records_merged_total (Counter)
//   - ghactivity_search_bisections_total (Counter)
//   - ghactivity_source_failures_total{source} (Counter)
//   - ghactivity_runs_total{state} (Counter)
