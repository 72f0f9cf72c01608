package routing

import (
	"time"

	"github.com/sschepis/summoned-spaces-sub004/types"
)

// Peer - Represents a known peer in the discovery network. Address is the
// peer's canonical ring position, derived from its primary anchor once at
// insertion time; both bucket placement and proximity ranking use this one
// address so the two never disagree.
type Peer struct {
	ID       string
	Address  types.Address
	NetAddr  string
	LastSeen time.Time
}
