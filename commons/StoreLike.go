package commons

import "github.com/sschepis/summoned-spaces-sub004/types"

// StoreLike - Provides the subset of the dht.Store public interface consumed
// by higher level components (namespacing layers, health reporters). Using
// this interface keeps those components decoupled from the dht package and
// trivially testable against a fake store.
type StoreLike interface {

	// StoreRecord - Commits a record of the given kind under key, replacing
	// any existing record under the same key.
	StoreRecord(key string, kind types.RecordKind, value string) error

	// LookupValue - Attempts to resolve the live value stored under key.
	LookupValue(key string) (string, bool)
}
