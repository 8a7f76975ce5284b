// Package metrics exposes the Prometheus registry used by the gateway.
// Metrics are defined in their respective packages (cache, fetch, gateway)
// and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registerer all gateway metrics use.
var Registry = prometheus.DefaultRegisterer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Partition Store Metrics (pkg/cache):
//   - gateway_cache_hits_total{backend} (Counter): Partition lookups that found an entry
//   - gateway_cache_misses_total{backend} (Counter): Partition lookups without an entry
//   - gateway_cache_written_bytes_total{backend} (Counter): Encoded bytes written by Put
//   - gateway_partitions_deleted_total{backend} (Counter): Partitions deleted
//   - gateway_cache_errors_total{backend, operation} (Counter): Store operation errors
//
// Fetch Metrics (pkg/fetch):
//   - gateway_fetch_requests_total{status} (Counter): Network fetches by HTTP status or "error"
//   - gateway_fetch_duration_seconds{method} (Histogram): Network fetch duration
//   - gateway_fetch_errors_total{class} (Counter): Transport failures (network, timeout, canceled)
//
// Gateway Metrics (pkg/gateway):
//   - gateway_intercepts_total{strategy, source} (Counter): Intercepted requests by outcome
//   - gateway_passthrough_total{reason} (Counter): Requests left to the network (method, inactive, url)
//   - gateway_installs_total{result} (Counter): Install phases (success, fetch_failed, store_failed)
//   - gateway_activations_total (Counter): Completed activations
//   - gateway_stale_partitions_deleted_total (Counter): Partitions removed by activation
//
// Example Prometheus Queries:
//
//   # Offline answer rate
//   sum(rate(gateway_intercepts_total{source=~"cache|fallback_cache|placeholder"}[5m])) /
//   sum(rate(gateway_intercepts_total[5m]))
//
//   # Placeholder images served
//   rate(gateway_intercepts_total{source="placeholder"}[5m])
//
//   # P95 fetch latency
//   histogram_quantile(0.95, rate(gateway_fetch_duration_seconds_bucket[5m]))
