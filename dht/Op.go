package dht

// op type enum-like
const (
	OP_STORE = 1
	OP_FIND  = 2
	OP_PING  = 5
	OP_JOIN  = 6
	OP_LEAVE = 7
)
