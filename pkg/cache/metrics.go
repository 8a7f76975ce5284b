package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store backend names used as metric labels.
const (
	BackendMemory  = "memory"
	BackendRedis   = "redis"
	BackendLevelDB = "leveldb"
)

var (
	// CacheHits tracks partition lookups that found an entry
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Total number of partition cache hits",
		},
		[]string{"backend"},
	)

	// CacheMisses tracks partition lookups that found nothing
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_misses_total",
			Help: "Total number of partition cache misses",
		},
		[]string{"backend"},
	)

	// CacheWrittenBytes tracks bytes written into partitions
	CacheWrittenBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_written_bytes_total",
			Help: "Total number of bytes written into partitions",
		},
		[]string{"backend"},
	)

	// PartitionsDeleted tracks deleted partitions
	PartitionsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_partitions_deleted_total",
			Help: "Total number of deleted cache partitions",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks store operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"}, // "open", "match", "put", "delete", "keys", "names"
	)
)
