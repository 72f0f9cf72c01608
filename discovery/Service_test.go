package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sschepis/summoned-spaces-sub004/config"
	"github.com/sschepis/summoned-spaces-sub004/dht"
	"github.com/sschepis/summoned-spaces-sub004/types"
)

// fakeStore records the exact keys and kinds the service writes.
type fakeStore struct {
	records map[string]string
	kinds   map[string]types.RecordKind
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]string{}, kinds: map[string]types.RecordKind{}}
}

func (f *fakeStore) StoreRecord(key string, kind types.RecordKind, value string) error {
	f.records[key] = value
	f.kinds[key] = kind
	return nil
}

func (f *fakeStore) LookupValue(key string) (string, bool) {
	v, ok := f.records[key]
	return v, ok
}

func TestRegisterNodeUsesNodePrefix(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, zap.NewNop())

	require.NoError(t, svc.RegisterNode("alpha", `{"addr":":9301"}`))

	assert.Equal(t, `{"addr":":9301"}`, fs.records["node:alpha"])
	assert.Equal(t, types.KindNodeInfo, fs.kinds["node:alpha"])

	state, ok := svc.FindNode("alpha")
	require.True(t, ok)
	assert.Equal(t, `{"addr":":9301"}`, state)
}

func TestFindNodeAbsent(t *testing.T) {
	svc := NewService(newFakeStore(), zap.NewNop())
	_, ok := svc.FindNode("ghost")
	assert.False(t, ok)
}

func TestStateLocationsRoundTrip(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, zap.NewNop())

	require.NoError(t, svc.RegisterStateLocation("hashA", []string{"n1", "n2", "n3"}))

	assert.Equal(t, "n1,n2,n3", fs.records["state:hashA"])
	assert.Equal(t, types.KindStateLocation, fs.kinds["state:hashA"])
	assert.Equal(t, []string{"n1", "n2", "n3"}, svc.FindStateLocations("hashA"))
}

func TestFindStateLocationsAbsentIsEmpty(t *testing.T) {
	svc := NewService(newFakeStore(), zap.NewNop())
	assert.Empty(t, svc.FindStateLocations("missing"))
}

func TestFindStateLocationsEmptyListStaysEmpty(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, zap.NewNop())

	require.NoError(t, svc.RegisterStateLocation("hashB", nil))
	assert.Empty(t, svc.FindStateLocations("hashB"))
}

func TestFragmentMapRoundTrip(t *testing.T) {
	fs := newFakeStore()
	svc := NewService(fs, zap.NewNop())

	original := map[string][]int{
		"nodeA": {1, 2},
		"nodeB": {3},
	}
	require.NoError(t, svc.RegisterFragmentMap("hash1", original))
	assert.Equal(t, types.KindFragmentMap, fs.kinds["fragments:hash1"])

	back, ok := svc.FindFragmentMap("hash1")
	require.True(t, ok)
	assert.Equal(t, original, back)
}

// The service against a real store: register a fragment map and read the
// raw namespaced record back.
func TestServiceOverRealStore(t *testing.T) {
	store, err := dht.NewStore("n1", []uint64{2, 3, 5}, "", nil, config.Default(), zap.NewNop(), nil)
	require.NoError(t, err)
	defer store.Close()

	svc := NewService(store, zap.NewNop())

	require.NoError(t, svc.RegisterFragmentMap("hash1", map[string][]int{"nodeA": {1, 2}, "nodeB": {3}}))

	raw, ok := store.Lookup("fragments:hash1")
	require.True(t, ok)
	assert.Equal(t, types.KindFragmentMap, raw.Kind)
	assert.JSONEq(t, `{"nodeA":[1,2],"nodeB":[3]}`, raw.Value)

	back, ok := svc.FindFragmentMap("hash1")
	require.True(t, ok)
	assert.Equal(t, map[string][]int{"nodeA": {1, 2}, "nodeB": {3}}, back)

	require.NoError(t, svc.RegisterNode("n2", "state-blob"))
	state, ok := svc.FindNode("n2")
	require.True(t, ok)
	assert.Equal(t, "state-blob", state)
}
