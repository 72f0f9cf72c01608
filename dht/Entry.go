package dht

import (
	"time"

	"github.com/sschepis/summoned-spaces-sub004/types"
)

// Entry - A stored record. The JSON field names form the serialized entry
// shape external tooling inspects and must round-trip exactly. CreatedAt and
// TTL are both expressed in milliseconds; an entry is live for as long as
// now-CreatedAt does not exceed TTL. Entries are never mutated in place,
// a replacement is a full overwrite keyed by Key.
type Entry struct {
	Key         string           `json:"key"`
	Kind        types.RecordKind `json:"type"`
	Value       string           `json:"value"`
	OwnerNodeID string           `json:"nodeId"`
	CreatedAt   int64            `json:"timestamp"`
	TTL         int64            `json:"ttl"`
}

// Live reports whether the entry is still within its TTL at the given time.
func (e Entry) Live(now time.Time) bool {
	return now.UnixMilli()-e.CreatedAt <= e.TTL
}

// The getters below satisfy commons.EntryLike for event delivery.

func (e Entry) GetKey() string {
	return e.Key
}

func (e Entry) GetKind() types.RecordKind {
	return e.Kind
}

func (e Entry) GetValue() string {
	return e.Value
}

func (e Entry) GetOwnerNodeID() string {
	return e.OwnerNodeID
}

func (e Entry) GetCreatedAt() int64 {
	return e.CreatedAt
}

func (e Entry) GetTTL() int64 {
	return e.TTL
}
