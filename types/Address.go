package types

import "fmt"

// AddressBits is the width of the key space. Every key and every node
// anchor is mapped onto a point in a 2^64 circular ring.
const AddressBits = 64

// Address - Represents a position in the 64-bit circular key space.
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("%016x", uint64(a))
}
