package types

// RecordKind - Identifies the application-level record category of a stored
// entry. The numeric values are part of the serialized entry wire shape and
// must not be reordered.
type RecordKind int

const (
	KindNodeInfo RecordKind = iota
	KindStateLocation
	KindFragmentMap
	KindRoutingHint
)

func (k RecordKind) String() string {
	switch k {
	case KindNodeInfo:
		return "node-info"
	case KindStateLocation:
		return "state-location"
	case KindFragmentMap:
		return "fragment-map"
	case KindRoutingHint:
		return "routing-hint"
	default:
		return "unknown"
	}
}

// Valid reports whether k is one of the defined record kinds.
func (k RecordKind) Valid() bool {
	return k >= KindNodeInfo && k <= KindRoutingHint
}
