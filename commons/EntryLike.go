package commons

import "github.com/sschepis/summoned-spaces-sub004/types"

// EntryLike defines the read-only view of a stored entry that is exposed to
// event listeners. This is necessary so as to prevent the cyclic import
// scenario that would otherwise occur between the dht and events packages.
type EntryLike interface {
	GetKey() string
	GetKind() types.RecordKind
	GetValue() string
	GetOwnerNodeID() string
	GetCreatedAt() int64
	GetTTL() int64
}
