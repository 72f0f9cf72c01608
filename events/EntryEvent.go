package events

import (
	"time"

	"github.com/sschepis/summoned-spaces-sub004/commons"
)

// EntryEvent - Describes a change to the local entry set of a store: a fresh
// commit or an expiry sweep removal. Events carry the entry snapshot at the
// time the change was observed.
type EntryEvent struct {
	entry     commons.EntryLike
	nodeID    string
	eventTime time.Time
}

// NewEntryEvent - Creates and returns a new instance of an EntryEvent.
func NewEntryEvent(entry commons.EntryLike, nodeID string, eventTime time.Time) EntryEvent {
	return EntryEvent{
		entry:     entry,
		nodeID:    nodeID,
		eventTime: eventTime,
	}
}

func (e EntryEvent) GetEntry() commons.EntryLike {
	return e.entry
}

func (e EntryEvent) GetNodeID() string {
	return e.nodeID
}

func (e EntryEvent) GetEventTime() time.Time {
	return e.eventTime
}
