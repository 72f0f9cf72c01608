package events

// StoreEventListener - Implemented by components that want to observe changes
// to a store's local entry set without polling it, such as the health and
// statistics aggregation layer.
type StoreEventListener interface {

	//OnEntryStored is called after an entry has been committed to the local entry set, including overwrites of an existing key.
	OnEntryStored(event EntryEvent)

	//OnEntryExpired is called when an expired entry is removed from the local entry set, either lazily during a lookup or eagerly during a maintenance sweep.
	OnEntryExpired(event EntryEvent)
}
