package routing

import (
	"slices"
)

// Bucket - Models a single fixed-capacity bucket of the routing table.
// Peers are kept in least-recently-seen order: index 0 is the staleness
// candidate, the last index is the most recently refreshed peer.
type Bucket struct {
	Peers []*Peer
}

//Size - Returns the number of peers in this bucket.
func (b *Bucket) Size() int {
	return len(b.Peers)
}

// Remove - Removes the peer from this bucket at the specified index.
func (b *Bucket) Remove(index int) bool {

	if index < 0 || index >= len(b.Peers) || len(b.Peers) < 1 {
		return false
	}

	b.Peers = slices.Delete(b.Peers, index, index+1)
	return true
}

// Oldest - Returns the least recently seen peer of this bucket, or nil when
// the bucket is empty.
func (b *Bucket) Oldest() *Peer {
	if len(b.Peers) < 1 {
		return nil
	}
	return b.Peers[0]
}
