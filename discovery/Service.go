// Package discovery standardizes the key prefixes and payload encodings for
// the three application-level record kinds stored in the distribution layer:
// node descriptors, state-location lists and fragment maps.
package discovery

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sschepis/summoned-spaces-sub004/commons"
	"github.com/sschepis/summoned-spaces-sub004/types"
)

// Literal key prefixes. Callers written against the original namespace
// depend on these exact strings.
const (
	nodePrefix      = "node:"
	statePrefix     = "state:"
	fragmentsPrefix = "fragments:"
)

// Service - A thin namespacing layer over a store.
type Service struct {
	store commons.StoreLike
	log   *zap.Logger
}

func NewService(store commons.StoreLike, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

// RegisterNode publishes a node's serialized state under its descriptor key.
func (s *Service) RegisterNode(nodeID string, state string) error {
	return s.store.StoreRecord(nodePrefix+nodeID, types.KindNodeInfo, state)
}

// FindNode resolves a node's serialized state. Absence is a normal outcome.
func (s *Service) FindNode(nodeID string) (string, bool) {
	return s.store.LookupValue(nodePrefix + nodeID)
}

// RegisterStateLocation records which nodes hold a given state hash as a
// comma-joined id list.
func (s *Service) RegisterStateLocation(stateHash string, nodeIDs []string) error {
	return s.store.StoreRecord(statePrefix+stateHash, types.KindStateLocation, strings.Join(nodeIDs, ","))
}

// FindStateLocations returns the node ids recorded for a state hash, in
// stored order. An absent key yields an empty sequence.
func (s *Service) FindStateLocations(stateHash string) []string {
	v, ok := s.store.LookupValue(statePrefix + stateHash)
	if !ok || v == "" {
		return []string{}
	}
	return strings.Split(v, ",")
}

// RegisterFragmentMap stores the nodeId -> fragment indices mapping for a
// state hash as a JSON object.
func (s *Service) RegisterFragmentMap(stateHash string, fragments map[string][]int) error {
	b, err := json.Marshal(fragments)
	if err != nil {
		return fmt.Errorf("discovery: encode fragment map: %w", err)
	}
	return s.store.StoreRecord(fragmentsPrefix+stateHash, types.KindFragmentMap, string(b))
}

// FindFragmentMap reconstructs the fragment mapping stored for a state hash.
func (s *Service) FindFragmentMap(stateHash string) (map[string][]int, bool) {
	v, ok := s.store.LookupValue(fragmentsPrefix + stateHash)
	if !ok {
		return nil, false
	}
	var fragments map[string][]int
	if err := json.Unmarshal([]byte(v), &fragments); err != nil {
		s.log.Warn("malformed fragment map",
			zap.String("stateHash", stateHash),
			zap.Error(err))
		return nil, false
	}
	return fragments, true
}
