package dht

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sschepis/summoned-spaces-sub004/config"
	"github.com/sschepis/summoned-spaces-sub004/events"
	"github.com/sschepis/summoned-spaces-sub004/keyspace"
	"github.com/sschepis/summoned-spaces-sub004/types"
)

// newLocalStore builds a transportless store: all local semantics, no
// replication, no remote fallback.
func newLocalStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("n1", []uint64{2, 3, 5}, "", nil, config.Default(), zap.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

// fixNow pins the store clock and returns a function that advances it.
func fixNow(s *Store) func(d time.Duration) {
	base := time.Now()
	cur := base
	s.now = func() time.Time { return cur }
	return func(d time.Duration) { cur = cur.Add(d) }
}

type recordingListener struct {
	stored  []string
	expired []string
}

func (l *recordingListener) OnEntryStored(e events.EntryEvent) {
	l.stored = append(l.stored, e.GetEntry().GetKey())
}

func (l *recordingListener) OnEntryExpired(e events.EntryEvent) {
	l.expired = append(l.expired, e.GetEntry().GetKey())
}

func TestNewStoreRequiresAnchors(t *testing.T) {
	_, err := NewStore("n1", nil, "", nil, config.Default(), zap.NewNop(), nil)
	require.ErrorIs(t, err, keyspace.ErrNoAnchors)
}

func TestStoreAndLookupRoundTrip(t *testing.T) {
	s := newLocalStore(t)

	require.NoError(t, s.StoreRecord("k1", types.KindNodeInfo, "v1"))

	e, ok := s.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "k1", e.Key)
	assert.Equal(t, types.KindNodeInfo, e.Kind)
	assert.Equal(t, "v1", e.Value)
	assert.Equal(t, "n1", e.OwnerNodeID)

	stats := s.Stats()
	assert.Equal(t, "n1", stats.NodeID)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 0, stats.RoutingTableSize)
}

func TestStoreOverwritesExistingKey(t *testing.T) {
	s := newLocalStore(t)

	require.NoError(t, s.StoreRecord("k1", types.KindNodeInfo, "v1"))
	require.NoError(t, s.StoreRecord("k1", types.KindStateLocation, "v2"))

	e, ok := s.Lookup("k1")
	require.True(t, ok)
	assert.Equal(t, "v2", e.Value)
	assert.Equal(t, types.KindStateLocation, e.Kind)
	assert.Equal(t, 1, s.Stats().Entries)
}

func TestStoreValidation(t *testing.T) {
	s := newLocalStore(t)

	assert.ErrorIs(t, s.StoreRecord("", types.KindNodeInfo, "v"), ErrEmptyKey)
	assert.ErrorIs(t, s.StoreRecordWithTTL("k", types.KindNodeInfo, "v", -time.Second), ErrNegativeTTL)
	assert.ErrorIs(t, s.StoreRecord("k", types.RecordKind(99), "v"), ErrInvalidKind)
}

func TestLookupMissIsNotAnError(t *testing.T) {
	s := newLocalStore(t)
	_, ok := s.Lookup("absent")
	assert.False(t, ok)
}

func TestEntryExpiresAtTTLBoundary(t *testing.T) {
	s := newLocalStore(t)
	advance := fixNow(s)

	const ttl = time.Second
	require.NoError(t, s.StoreRecordWithTTL("k1", types.KindNodeInfo, "v1", ttl))

	// one millisecond before the deadline the entry is still live
	advance(ttl - time.Millisecond)
	_, ok := s.Lookup("k1")
	assert.True(t, ok)

	// one millisecond past the deadline it is gone and removed from the map
	advance(2 * time.Millisecond)
	_, ok = s.Lookup("k1")
	assert.False(t, ok)

	s.mu.RLock()
	_, stillThere := s.entries["k1"]
	s.mu.RUnlock()
	assert.False(t, stillThere, "expired entry must be deleted on read")
}

func TestMaintenanceSweepsExpiredEntries(t *testing.T) {
	s := newLocalStore(t)
	advance := fixNow(s)

	require.NoError(t, s.StoreRecordWithTTL("short", types.KindNodeInfo, "v", time.Second))
	require.NoError(t, s.StoreRecordWithTTL("long", types.KindNodeInfo, "v", time.Hour))

	advance(2 * time.Second)
	s.Maintenance()

	assert.Equal(t, 1, s.Stats().Entries)
	_, ok := s.Lookup("long")
	assert.True(t, ok)

	// idempotent: a second sweep with no intervening writes changes nothing
	s.Maintenance()
	assert.Equal(t, 1, s.Stats().Entries)
}

func TestMaintenanceOnEmptyStore(t *testing.T) {
	s := newLocalStore(t)
	s.Maintenance()
	s.Maintenance()
	assert.Zero(t, s.Stats().Entries)
}

func TestStatsCountsOnlyLiveEntries(t *testing.T) {
	s := newLocalStore(t)
	advance := fixNow(s)

	require.NoError(t, s.StoreRecordWithTTL("k1", types.KindNodeInfo, "v", time.Second))
	require.NoError(t, s.StoreRecordWithTTL("k2", types.KindNodeInfo, "v", time.Hour))

	advance(2 * time.Second)
	assert.Equal(t, 1, s.Stats().Entries)
}

func TestDelete(t *testing.T) {
	s := newLocalStore(t)
	require.NoError(t, s.StoreRecord("k1", types.KindNodeInfo, "v1"))

	assert.True(t, s.Delete("k1"))
	assert.False(t, s.Delete("k1"))
	_, ok := s.Lookup("k1")
	assert.False(t, ok)
}

func TestListenersObserveStoresAndExpiries(t *testing.T) {
	s := newLocalStore(t)
	advance := fixNow(s)

	l := &recordingListener{}
	s.AddListener(l)

	require.NoError(t, s.StoreRecordWithTTL("k1", types.KindNodeInfo, "v", time.Second))
	assert.Equal(t, []string{"k1"}, l.stored)

	advance(2 * time.Second)
	s.Maintenance()
	assert.Equal(t, []string{"k1"}, l.expired)
}

func TestRoutingTableSizeInStats(t *testing.T) {
	s := newLocalStore(t)
	require.NoError(t, s.AddPeer("p1", []uint64{7}, ""))
	require.NoError(t, s.AddPeer("p2", []uint64{11}, ""))

	assert.Equal(t, 2, s.Stats().RoutingTableSize)
}

func TestEntryWireShape(t *testing.T) {
	e := Entry{
		Key:         "k1",
		Kind:        types.KindFragmentMap,
		Value:       "v1",
		OwnerNodeID: "n1",
		CreatedAt:   1700000000000,
		TTL:         3600000,
	}

	b, err := json.Marshal(e)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "k1", raw["key"])
	assert.Equal(t, float64(2), raw["type"])
	assert.Equal(t, "v1", raw["value"])
	assert.Equal(t, "n1", raw["nodeId"])
	assert.Equal(t, float64(1700000000000), raw["timestamp"])
	assert.Equal(t, float64(3600000), raw["ttl"])

	var back Entry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, e, back)
}

func TestStatsWireShape(t *testing.T) {
	b, err := json.Marshal(Stats{NodeID: "n1", Entries: 1, RoutingTableSize: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodeId":"n1","entries":1,"routingTableSize":4}`, string(b))
}
