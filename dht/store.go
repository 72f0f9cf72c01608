package dht

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sschepis/summoned-spaces-sub004/config"
	"github.com/sschepis/summoned-spaces-sub004/events"
	"github.com/sschepis/summoned-spaces-sub004/keyspace"
	"github.com/sschepis/summoned-spaces-sub004/metrics"
	"github.com/sschepis/summoned-spaces-sub004/netx"
	"github.com/sschepis/summoned-spaces-sub004/routing"
	"github.com/sschepis/summoned-spaces-sub004/types"
	"github.com/sschepis/summoned-spaces-sub004/wire"
)

var (
	ErrEmptyKey    = errors.New("dht: empty key")
	ErrNegativeTTL = errors.New("dht: negative ttl")
	ErrInvalidKind = errors.New("dht: invalid record kind")
	ErrNoTransport = errors.New("dht: no transport configured")
)

// Store - The local key/value map of time-limited entries plus the
// replication, lookup and maintenance logic that uses the routing table to
// decide which peers own a key. One Store is created per node and lives for
// the node's process lifetime; nothing is persisted across restarts.
//
// A store with a nil transport runs in local-only mode: every operation keeps
// its local semantics but replica fan-out, remote lookup fallback and
// liveness probing are skipped.
type Store struct {
	cfg       config.Config
	log       *zap.Logger
	met       *metrics.Metrics
	id        string
	anchors   []uint64
	addr      string
	table     *routing.Table
	transport netx.Transport
	cd        wire.Codec

	mu      sync.RWMutex
	entries map[string]Entry

	lmu       sync.RWMutex
	listeners []events.StoreEventListener

	pending  sync.Map // map[uint64]chan []byte
	reqSeq   uint64
	stop     chan struct{}
	stopOnce sync.Once

	// overridable for deterministic expiry tests
	now func() time.Time
}

// Stats - The structured usage summary exposed to external tooling. The JSON
// field names are part of the stats wire shape.
type Stats struct {
	NodeID           string `json:"nodeId"`
	Entries          int    `json:"entries"`
	RoutingTableSize int    `json:"routingTableSize"`
}

// NewStore creates a store for the node identified by id, anchored at the
// given positions in the key space. The anchor list must be non-empty; only
// the first anchor determines the node's ring position. When transport is
// non-nil the store begins listening on netAddr and starts its background
// maintenance sweep.
func NewStore(id string, anchors []uint64, netAddr string, transport netx.Transport, cfg config.Config, log *zap.Logger, met *metrics.Metrics) (*Store, error) {
	if id == "" {
		return nil, errors.New("dht: empty node id")
	}
	if len(anchors) == 0 {
		return nil, keyspace.ErrNoAnchors
	}
	if log == nil {
		log = zap.NewNop()
	}

	var codec wire.Codec = wire.JSONCodec{}
	if cfg.UseProtobuf {
		codec = wire.ProtobufCodec{}
	}

	s := &Store{
		cfg:       cfg,
		log:       log.With(zap.String("node", id)),
		met:       met,
		id:        id,
		anchors:   append([]uint64(nil), anchors...),
		addr:      netAddr,
		table:     routing.NewTable(id, keyspace.AnchorToAddress(anchors[0]), cfg.MaxBucketSize),
		transport: transport,
		cd:        codec,
		entries:   map[string]Entry{},
		stop:      make(chan struct{}),
		now:       time.Now,
	}

	s.table.SetEvictionHook(func(evicted routing.Peer) {
		if s.met != nil {
			s.met.BucketEvictions.Inc()
		}
		s.log.Debug("bucket full, evicted least recently seen peer",
			zap.String("peer", evicted.ID))
	})

	if transport != nil {
		if err := transport.Listen(netAddr, s.onMessage); err != nil {
			return nil, fmt.Errorf("dht: listen on %s: %w", netAddr, err)
		}
		go s.janitor()
	}

	return s, nil
}

func (s *Store) ID() string { return s.id }

// Table exposes the routing table for read access by health reporting.
func (s *Store) Table() *routing.Table { return s.table }

// Close stops the maintenance sweep and shuts the transport down.
func (s *Store) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.transport != nil {
			_ = s.transport.Close()
		}
	})
}

// AddListener registers a listener for local entry-set changes.
func (s *Store) AddListener(l events.StoreEventListener) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, l)
	s.lmu.Unlock()
}

// AddPeer registers a peer in the routing table. Only the peer's first
// anchor determines its ring position.
func (s *Store) AddPeer(peerID string, anchors []uint64, netAddr string) error {
	if err := s.table.AddPeer(peerID, anchors, netAddr); err != nil {
		return err
	}
	s.updatePeerGauge()
	return nil
}

// StoreRecord commits a record under key with the default TTL, replacing any
// existing record under the same key, and fans it out to the closest peers.
// The result reflects the local commit only; unreachable replicas never fail
// a store.
func (s *Store) StoreRecord(key string, kind types.RecordKind, value string) error {
	return s.StoreRecordWithTTL(key, kind, value, s.cfg.DefaultTTL)
}

// StoreRecordWithTTL is StoreRecord with an explicit time-to-live. Empty
// keys, negative TTLs and unknown record kinds are rejected; this validation
// is deliberately stricter than silent acceptance.
func (s *Store) StoreRecordWithTTL(key string, kind types.RecordKind, value string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl < 0 {
		return ErrNegativeTTL
	}
	if !kind.Valid() {
		return ErrInvalidKind
	}

	entry := Entry{
		Key:         key,
		Kind:        kind,
		Value:       value,
		OwnerNodeID: s.id,
		CreatedAt:   s.now().UnixMilli(),
		TTL:         ttl.Milliseconds(),
	}

	s.commit(entry)
	if s.met != nil {
		s.met.StoresTotal.Inc()
	}

	// Replica fan-out is asynchronous; the local write is the success
	// criterion for this operation.
	targets := s.table.Closest(keyspace.HashKey(key), s.cfg.ReplicationFactor)
	if s.transport != nil && len(targets) > 0 {
		go s.replicate(entry, targets)
	}
	return nil
}

// Lookup resolves the live entry stored under key. A locally expired entry
// is removed before the miss path runs. On a local miss the closest peers
// are queried through the transport; absence remains a normal outcome.
func (s *Store) Lookup(key string) (Entry, bool) {
	if e, ok := s.lookupLocal(key); ok {
		if s.met != nil {
			s.met.LookupHits.Inc()
		}
		return e, true
	}

	if e, ok := s.lookupRemote(key); ok {
		if s.met != nil {
			s.met.LookupHits.Inc()
		}
		return e, true
	}

	if s.met != nil {
		s.met.LookupMisses.Inc()
	}
	return Entry{}, false
}

// LookupValue implements commons.StoreLike.
func (s *Store) LookupValue(key string) (string, bool) {
	e, ok := s.Lookup(key)
	if !ok {
		return "", false
	}
	return e.Value, true
}

// Delete removes the entry stored under key from the local entry set.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	if ok {
		s.updateEntryGauge()
	}
	return ok
}

// Entries returns a snapshot of the live local entry set.
func (s *Store) Entries() []Entry {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Live(now) {
			out = append(out, e)
		}
	}
	return out
}

// Maintenance sweeps expired entries out of the local entry set and probes
// the least recently seen peer of every non-empty bucket, removing peers
// that fail the probe. Idempotent and safe on an empty store.
func (s *Store) Maintenance() {
	now := s.now()

	s.mu.Lock()
	var expired []Entry
	for k, e := range s.entries {
		if !e.Live(now) {
			expired = append(expired, e)
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()

	for _, e := range expired {
		if s.met != nil {
			s.met.EntriesExpired.Inc()
		}
		s.notifyExpired(e)
	}
	if len(expired) > 0 {
		s.updateEntryGauge()
		s.log.Debug("maintenance sweep removed expired entries",
			zap.Int("count", len(expired)))
	}

	if s.transport != nil {
		s.probePeers()
	}
}

// Join contacts each bootstrap address, announcing this node and learning
// the remote's identity. It succeeds when at least one bootstrap peer
// answers.
func (s *Store) Join(bootstrapAddrs []string) error {
	if s.transport == nil {
		return ErrNoTransport
	}

	req, _ := json.Marshal(joinRequest{NodeID: s.id, Anchors: s.anchors, Addr: s.addr})

	var joinErrs []error
	joined := 0
	for _, addr := range bootstrapAddrs {
		respBytes, err := s.sendRequest(addr, OP_JOIN, req)
		if err != nil {
			joinErrs = append(joinErrs, fmt.Errorf("join %s: %w", addr, err))
			continue
		}
		var resp joinResponse
		if err := json.Unmarshal(respBytes, &resp); err != nil {
			joinErrs = append(joinErrs, fmt.Errorf("join %s: %w", addr, err))
			continue
		}
		if !resp.Ok {
			joinErrs = append(joinErrs, fmt.Errorf("join %s rejected: %s", addr, resp.Err))
			continue
		}
		if err := s.AddPeer(resp.NodeID, resp.Anchors, addr); err != nil {
			joinErrs = append(joinErrs, fmt.Errorf("join %s: %w", addr, err))
			continue
		}
		joined++
		s.log.Info("joined bootstrap peer",
			zap.String("peer", resp.NodeID),
			zap.String("addr", addr))
	}

	if joined == 0 && len(bootstrapAddrs) > 0 {
		return errors.Join(joinErrs...)
	}
	return nil
}

// Leave hands every live entry off to its closest peers, notifies known
// peers that this node is departing and shuts the store down.
func (s *Store) Leave() error {
	if s.transport == nil {
		s.Close()
		return nil
	}

	for _, e := range s.Entries() {
		targets := s.table.Closest(keyspace.HashKey(e.Key), s.cfg.ReplicationFactor)
		req, _ := json.Marshal(storeRequest{Entry: e})
		for _, p := range targets {
			if p.NetAddr == "" {
				continue
			}
			if _, err := s.sendRequest(p.NetAddr, OP_STORE, req); err != nil {
				s.log.Warn("entry drain failed",
					zap.String("key", e.Key),
					zap.String("peer", p.ID),
					zap.Error(err))
			}
		}
	}

	// departure notice is one-way, nobody replies to a node that is gone
	notice, _ := json.Marshal(leaveNotice{NodeID: s.id})
	msg, err := s.cd.Wrap(OP_LEAVE, s.nextReqID(), false, s.id, notice)
	if err == nil {
		for _, p := range s.table.ListPeers() {
			if p.NetAddr != "" {
				_ = s.transport.Send(p.NetAddr, msg)
			}
		}
	}

	s.Close()
	return nil
}

// Stats returns the node's usage summary: live entry count and total peer
// count across all routing-table buckets.
func (s *Store) Stats() Stats {
	now := s.now()
	s.mu.RLock()
	live := 0
	for _, e := range s.entries {
		if e.Live(now) {
			live++
		}
	}
	s.mu.RUnlock()

	return Stats{
		NodeID:           s.id,
		Entries:          live,
		RoutingTableSize: s.table.Size(),
	}
}

// -----------------------------------------------------------------------------
// Internals
// -----------------------------------------------------------------------------

func (s *Store) lookupLocal(key string) (Entry, bool) {
	now := s.now()

	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && e.Live(now) {
		s.mu.Unlock()
		return e, true
	}
	if ok {
		// expired: delete first, then fall through to the miss path
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if ok {
		if s.met != nil {
			s.met.EntriesExpired.Inc()
		}
		s.notifyExpired(e)
		s.updateEntryGauge()
	}
	return Entry{}, false
}

func (s *Store) lookupRemote(key string) (Entry, bool) {
	if s.transport == nil {
		return Entry{}, false
	}
	targets := s.table.Closest(keyspace.HashKey(key), s.cfg.LookupFanout)
	if len(targets) == 0 {
		return Entry{}, false
	}
	if s.met != nil {
		s.met.RemoteLookups.Inc()
	}

	req, _ := json.Marshal(findRequest{Key: key})
	ch := make(chan Entry, len(targets))
	queried := 0
	for _, p := range targets {
		if p.NetAddr == "" {
			continue
		}
		queried++
		go func(addr string) {
			respBytes, err := s.sendRequest(addr, OP_FIND, req)
			if err != nil {
				ch <- Entry{}
				return
			}
			var resp findResponse
			if err := json.Unmarshal(respBytes, &resp); err != nil || !resp.Ok || resp.Entry == nil {
				ch <- Entry{}
				return
			}
			ch <- *resp.Entry
		}(p.NetAddr)
	}

	deadline := time.After(s.cfg.RequestTimeout)
	for i := 0; i < queried; i++ {
		select {
		case e := <-ch:
			if e.Key == key && e.Live(s.now()) {
				return e, true
			}
		case <-deadline:
			return Entry{}, false
		}
	}
	return Entry{}, false
}

// commit writes an entry into the local map, unconditionally overwriting any
// existing entry under the same key.
func (s *Store) commit(entry Entry) {
	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()

	s.updateEntryGauge()
	s.notifyStored(entry)
}

func (s *Store) replicate(entry Entry, targets []routing.Peer) {
	req, err := json.Marshal(storeRequest{Entry: entry})
	if err != nil {
		return
	}
	for _, p := range targets {
		if p.NetAddr == "" || p.ID == s.id {
			continue
		}
		if s.met != nil {
			s.met.ReplicaStores.Inc()
		}
		if _, err := s.sendRequest(p.NetAddr, OP_STORE, req); err != nil {
			if s.met != nil {
				s.met.ReplicationErrors.Inc()
			}
			s.log.Warn("replica store failed",
				zap.String("key", entry.Key),
				zap.String("peer", p.ID),
				zap.Error(err))
		}
	}
}

// probePeers pings the least recently seen peer of each non-empty bucket and
// drops the ones that do not answer.
func (s *Store) probePeers() {
	candidates := s.table.OldestPerBucket()
	if len(candidates) == 0 {
		return
	}

	req, _ := json.Marshal(pingRequest{})
	var wg sync.WaitGroup
	for _, p := range candidates {
		if p.NetAddr == "" {
			continue
		}
		wg.Add(1)
		go func(p routing.Peer) {
			defer wg.Done()
			if _, err := s.sendRequest(p.NetAddr, OP_PING, req); err != nil {
				if s.table.Remove(p.ID) {
					if s.met != nil {
						s.met.PeersRemoved.Inc()
					}
					s.log.Info("removed unresponsive peer",
						zap.String("peer", p.ID),
						zap.Error(err))
				}
			}
		}(p)
	}
	wg.Wait()
	s.updatePeerGauge()
}

func (s *Store) nextReqID() uint64 { return atomic.AddUint64(&s.reqSeq, 1) }

// sendRequest dispatches an envelope to the given address and blocks until
// the correlated response arrives or the request timeout elapses.
func (s *Store) sendRequest(to string, op int, payload []byte) ([]byte, error) {
	reqID := s.nextReqID()
	msg, err := s.cd.Wrap(op, reqID, false, s.id, payload)
	if err != nil {
		return nil, err
	}
	ch := make(chan []byte, 1)
	s.pending.Store(reqID, ch)
	defer s.pending.Delete(reqID)
	if err := s.transport.Send(to, msg); err != nil {
		return nil, err
	}
	select {
	case resp := <-ch:
		return resp, nil
	case <-time.After(s.cfg.RequestTimeout):
		return nil, fmt.Errorf("dht: request timeout (op %d to %s)", op, to)
	case <-s.stop:
		return nil, errors.New("dht: store closed")
	}
}

func (s *Store) janitor() {
	t := time.NewTicker(s.cfg.JanitorInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.Maintenance()
		}
	}
}

func (s *Store) notifyStored(e Entry) {
	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()
	for _, l := range listeners {
		l.OnEntryStored(events.NewEntryEvent(e, s.id, s.now()))
	}
}

func (s *Store) notifyExpired(e Entry) {
	s.lmu.RLock()
	listeners := s.listeners
	s.lmu.RUnlock()
	for _, l := range listeners {
		l.OnEntryExpired(events.NewEntryEvent(e, s.id, s.now()))
	}
}

func (s *Store) updateEntryGauge() {
	if s.met == nil {
		return
	}
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()
	s.met.EntriesLive.Set(float64(n))
}

func (s *Store) updatePeerGauge() {
	if s.met == nil {
		return
	}
	s.met.RoutingTablePeers.Set(float64(s.table.Size()))
}
