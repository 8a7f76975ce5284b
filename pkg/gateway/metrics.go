package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for gateway operations.
var (
	interceptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_intercepts_total",
		Help: "Total intercepted requests by strategy and response source",
	}, []string{"strategy", "source"})

	passthroughTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_passthrough_total",
		Help: "Total requests not intercepted by reason",
	}, []string{"reason"}) // "method", "inactive", "url"

	installsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_installs_total",
		Help: "Total install phases by result",
	}, []string{"result"}) // "success", "fetch_failed", "store_failed"

	activationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_activations_total",
		Help: "Total completed activation phases",
	})

	stalePartitionsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_stale_partitions_deleted_total",
		Help: "Total stale partitions deleted during activation",
	})
)
