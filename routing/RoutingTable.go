package routing

import (
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/sschepis/summoned-spaces-sub004/keyspace"
	"github.com/sschepis/summoned-spaces-sub004/types"
)

// NumBuckets is the number of buckets in a routing table, one per possible
// XOR-distance bit length in the 64-bit key space.
const NumBuckets = types.AddressBits

// Table - A bounded, bucket-indexed index of known peers. Peers are placed
// into buckets by the bit length of the XOR distance between the local node's
// address and the peer's address; proximity queries rank the same addresses
// by circular distance.
type Table struct {
	self       string
	selfAddr   types.Address
	buckets    []Bucket
	bucketSize int
	mu         sync.RWMutex

	// Called after a peer is evicted from a full bucket to make room for a
	// newcomer, so that capacity pressure is observable.
	onEvict func(evicted Peer)
}

func NewTable(self string, selfAddr types.Address, bucketSize int) *Table {
	if bucketSize <= 0 {
		bucketSize = 20 // a good default
	}
	t := &Table{
		self:       self,
		selfAddr:   selfAddr,
		buckets:    make([]Bucket, NumBuckets),
		bucketSize: bucketSize,
	}
	return t
}

// SetEvictionHook wires a callback invoked whenever a full bucket evicts its
// least recently seen peer.
func (t *Table) SetEvictionHook(hook func(evicted Peer)) {
	t.mu.Lock()
	t.onEvict = hook
	t.mu.Unlock()
}

// BucketIndex returns the bucket a peer with the given address belongs to:
// the position of the highest set bit of the XOR distance from the local
// address, clamped to 0 when the distance is zero.
func (t *Table) BucketIndex(addr types.Address) int {
	xor := uint64(t.selfAddr) ^ uint64(addr)
	if xor == 0 {
		return 0
	}
	return bits.Len64(xor) - 1
}

// AddPeer - Upserts a peer in the correct bucket. Adding the local node is a
// no-op. An already known peer has its last-seen time refreshed and is moved
// to the most-recently-seen end of its bucket. When the target bucket is
// full, the least recently seen peer is evicted to make room.
func (t *Table) AddPeer(peerID string, anchors []uint64, netAddr string) error {
	if peerID == t.self {
		return nil
	}
	if len(anchors) == 0 {
		return keyspace.ErrNoAnchors
	}

	addr := keyspace.AnchorToAddress(anchors[0])
	i := t.BucketIndex(addr)

	t.mu.Lock()
	defer t.mu.Unlock()

	b := &t.buckets[i]
	now := time.Now()

	// already present? refresh + move to end (most recently seen)
	for idx := range b.Peers {
		if b.Peers[idx].ID == peerID {
			if netAddr != "" && b.Peers[idx].NetAddr != netAddr {
				b.Peers[idx].NetAddr = netAddr
			}
			b.Peers[idx].LastSeen = now

			// move-to-end if needed
			if idx != len(b.Peers)-1 {
				c := b.Peers[idx]
				copy(b.Peers[idx:], b.Peers[idx+1:])
				b.Peers[len(b.Peers)-1] = c
			}
			return nil
		}
	}

	// a peer re-announced with different anchors moves buckets; expunge any
	// stale placement so an id never appears in two buckets
	for j := range t.buckets {
		if j == i {
			continue
		}
		ob := &t.buckets[j]
		for idx, op := range ob.Peers {
			if op.ID == peerID {
				ob.Remove(idx)
				break
			}
		}
	}

	p := &Peer{ID: peerID, Address: addr, NetAddr: netAddr, LastSeen: now}

	//where there is adequate capacity in the bucket, append the new peer.
	if len(b.Peers) < t.bucketSize {
		b.Peers = append(b.Peers, p)
		return nil
	}

	//otherwise where the bucket is full, evict the least recently seen peer.
	evicted := *b.Peers[0]
	copy(b.Peers[0:], b.Peers[1:])
	b.Peers[len(b.Peers)-1] = p
	if t.onEvict != nil {
		t.onEvict(evicted)
	}
	return nil
}

// Remove - Explicitly removes the peer with the specified id from this
// routing table, where it exists. Returns TRUE where the target entry was
// successfully located and expunged and FALSE otherwise.
func (t *Table) Remove(peerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.buckets {
		b := &t.buckets[i]
		for idx, p := range b.Peers {
			if p.ID == peerID {
				b.Remove(idx)
				return true
			}
		}
	}
	return false
}

// GetNetAddr resolves the network address recorded for a peer id.
func (t *Table) GetNetAddr(peerID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.buckets {
		for _, p := range t.buckets[i].Peers {
			if p.ID == peerID {
				return p.NetAddr, true
			}
		}
	}
	return "", false
}

// ListPeers returns a snapshot of every peer across all buckets.
func (t *Table) ListPeers() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]Peer, 0, 64)
	for i := range t.buckets {
		for _, p := range t.buckets[i].Peers {
			peers = append(peers, *p)
		}
	}
	return peers
}

// Size returns the total number of peers summed across all buckets.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for i := range t.buckets {
		n += t.buckets[i].Size()
	}
	return n
}

// BucketSize returns the number of peers held in the bucket at index i.
func (t *Table) BucketSize(i int) int {
	if i < 0 || i >= NumBuckets {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.buckets[i].Size()
}

// Closest returns up to count peers across all buckets, ordered by ascending
// circular distance from the target address. Ties preserve insertion order.
// A count larger than the candidate set returns every known peer; an empty
// table returns an empty slice.
func (t *Table) Closest(target types.Address, count int) []Peer {
	t.mu.RLock()
	all := make([]Peer, 0, 64)
	for i := range t.buckets {
		for _, p := range t.buckets[i].Peers {
			all = append(all, *p)
		}
	}
	t.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return keyspace.Distance(all[i].Address, target) < keyspace.Distance(all[j].Address, target)
	})

	if count > len(all) {
		count = len(all)
	}
	if count < 0 {
		count = 0
	}
	return all[:count]
}

// OldestPerBucket returns the least recently seen peer of every non-empty
// bucket. These are the liveness-probe candidates for a maintenance sweep.
func (t *Table) OldestPerBucket() []Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Peer, 0, NumBuckets)
	for i := range t.buckets {
		if p := t.buckets[i].Oldest(); p != nil {
			out = append(out, *p)
		}
	}
	return out
}
