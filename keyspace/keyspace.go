// Package keyspace provides the pure address-space math used by the routing
// and storage layers: anchors and string keys are both mapped onto a 64-bit
// circular ring, and proximity is measured as the shorter arc between two
// points on that ring.
package keyspace

import (
	"errors"
	"math"
	"unicode/utf16"

	"github.com/sschepis/summoned-spaces-sub004/types"
)

// Phi is the golden ratio, used to disperse integer anchors across the ring
// (Fibonacci hashing).
const Phi = 1.618033988749895

// ErrNoAnchors is returned by ClosestAnchor when the anchor list is empty.
// Callers are expected to guarantee non-emptiness; this is a fail-fast guard,
// not a recoverable condition.
var ErrNoAnchors = errors.New("keyspace: empty anchor list")

// AnchorToAddress maps a positive integer anchor onto the ring by taking the
// fractional part of anchor*Phi and scaling it into the full 64-bit range.
// Equal anchors always map to the same address.
func AnchorToAddress(anchor uint64) types.Address {
	f := float64(anchor) * Phi
	frac := f - math.Floor(f)
	scaled := math.Ldexp(frac, types.AddressBits)
	// frac*2^64 can round up to exactly 2^64, which does not fit.
	if scaled >= math.Ldexp(1, types.AddressBits) {
		return types.Address(math.MaxUint64)
	}
	return types.Address(scaled)
}

// Distance returns the circular distance between two addresses: the length
// of the shorter arc around the ring. It is symmetric, zero for equal
// addresses and never exceeds 2^63.
func Distance(a, b types.Address) uint64 {
	d := uint64(a) - uint64(b)
	if d > 1<<(types.AddressBits-1) {
		d = -d
	}
	return d
}

// HashKey maps an arbitrary string key onto the ring using a rolling
// multiply-shift hash (h = h*31 + unit) over the key's UTF-16 code units.
// It is deterministic and fast; collisions are possible and acceptable as
// this is a routing hint, not an identity proof.
func HashKey(key string) types.Address {
	var h uint64
	for _, u := range utf16.Encode([]rune(key)) {
		h = (h << 5) - h + uint64(u)
	}
	return types.Address(h)
}

// ClosestAnchor returns the anchor from the provided list whose mapped
// address is nearest the target, breaking ties in favour of the earliest
// occurrence. An empty list yields ErrNoAnchors.
func ClosestAnchor(target types.Address, anchors []uint64) (uint64, error) {
	if len(anchors) == 0 {
		return 0, ErrNoAnchors
	}
	best := anchors[0]
	bestDist := Distance(target, AnchorToAddress(anchors[0]))
	for _, a := range anchors[1:] {
		if d := Distance(target, AnchorToAddress(a)); d < bestDist {
			best, bestDist = a, d
		}
	}
	return best, nil
}
