package config

import (
	"time"
)

// Config - Tunables for a single node's store, routing table and transport
// behaviour. Zero values are not usable; obtain a baseline via Default and
// adjust as needed.
type Config struct {
	ReplicationFactor        int           //the number of closest peers a stored key is replicated to.
	MaxBucketSize            int           //the maximum number of peers held in a single routing-table bucket; inserts into a full bucket evict the least recently seen peer.
	LookupFanout             int           //the number of closest peers queried when a lookup misses locally.
	DefaultTTL               time.Duration //the time-to-live applied to entries stored without an explicit TTL.
	JanitorInterval          time.Duration //the interval at which the background maintenance sweep runs. The sweep removes expired entries eagerly and probes the least recently seen peer of each bucket so that stale routing entries do not accumulate over time.
	RequestTimeout           time.Duration //the per-request deadline applied to every remote exchange (replica store, remote lookup, liveness ping, join handshake).
	UseProtobuf              bool          //when true the transport envelope is encoded on the protobuf wire format rather than JSON.
	OutboundQueueWorkerCount int           //the number of worker goroutines draining the transport outbound queue.
}

// Default returns the baseline configuration used by production nodes.
func Default() Config {
	return Config{
		ReplicationFactor:        3,
		MaxBucketSize:            20,
		LookupFanout:             3,
		DefaultTTL:               time.Hour,
		JanitorInterval:          time.Minute,
		RequestTimeout:           1500 * time.Millisecond,
		UseProtobuf:              false,
		OutboundQueueWorkerCount: 4,
	}
}
