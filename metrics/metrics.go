// Package metrics exposes the node's operational counters and gauges as
// Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks per-node store and routing activity.
type Metrics struct {
	// Store metrics
	StoresTotal    prometheus.Counter
	LookupHits     prometheus.Counter
	LookupMisses   prometheus.Counter
	RemoteLookups  prometheus.Counter
	EntriesExpired prometheus.Counter
	EntriesLive    prometheus.Gauge

	// Replication metrics
	ReplicaStores     prometheus.Counter
	ReplicationErrors prometheus.Counter

	// Routing metrics
	BucketEvictions   prometheus.Counter
	PeersRemoved      prometheus.Counter
	RoutingTablePeers prometheus.Gauge
}

// New creates and registers the node collectors against the given registry.
// A nil registry falls back to the default registerer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	return &Metrics{
		StoresTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_stores_total",
			Help: "Total number of local store commits",
		}),
		LookupHits: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_lookup_hits_total",
			Help: "Total number of lookups answered from the local entry set",
		}),
		LookupMisses: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_lookup_misses_total",
			Help: "Total number of lookups that found no live entry",
		}),
		RemoteLookups: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_remote_lookups_total",
			Help: "Total number of lookups escalated to remote peers",
		}),
		EntriesExpired: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_entries_expired_total",
			Help: "Total number of entries removed after their TTL elapsed",
		}),
		EntriesLive: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "dht_entries_live",
			Help: "Number of live entries in the local entry set",
		}),
		ReplicaStores: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_replica_stores_total",
			Help: "Total number of store requests fanned out to replica peers",
		}),
		ReplicationErrors: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_replication_errors_total",
			Help: "Total number of failed replica store requests",
		}),
		BucketEvictions: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_bucket_evictions_total",
			Help: "Total number of peers evicted from full routing-table buckets",
		}),
		PeersRemoved: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "dht_peers_removed_total",
			Help: "Total number of peers removed after failing a liveness probe",
		}),
		RoutingTablePeers: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "dht_routing_table_peers",
			Help: "Number of peers currently held in the routing table",
		}),
	}
}
