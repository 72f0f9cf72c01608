package dht

import (
	"encoding/json"

	"go.uber.org/zap"
)

// onMessage is the transport receive callback. Responses are routed to the
// pending request channel that matches their request id; requests are
// dispatched to the per-op handlers below.
func (s *Store) onMessage(from string, data []byte) {
	op, reqID, isResp, fromID, payload, err := s.cd.Unwrap(data)
	if err != nil {
		s.log.Warn("envelope unwrap failed", zap.String("from", from), zap.Error(err))
		return
	}

	if isResp {
		if chI, ok := s.pending.Load(reqID); ok {
			ch := chI.(chan []byte)
			select {
			case ch <- payload:
			default:
			}
		}
		return
	}

	switch op {
	case OP_STORE:
		s.handleStore(from, fromID, reqID, payload)
	case OP_FIND:
		s.handleFind(from, fromID, reqID, payload)
	case OP_PING:
		s.handlePing(from, fromID, reqID)
	case OP_JOIN:
		s.handleJoin(reqID, payload)
	case OP_LEAVE:
		s.handleLeave(payload)
	default:
		s.log.Warn("unknown op", zap.Int("op", op), zap.String("from", fromID))
	}
}

// respond wraps and sends a response payload back to the requesting node.
// The inbound connection's remote address is an ephemeral port under TCP, so
// the sender's listen address is resolved through the routing table; for
// peers we have no routing entry for, the transport-reported origin is used.
func (s *Store) respond(op int, reqID uint64, fromID, origin string, payload []byte) {
	to, ok := s.table.GetNetAddr(fromID)
	if !ok || to == "" {
		to = origin
	}
	msg, err := s.cd.Wrap(op, reqID, true, s.id, payload)
	if err != nil {
		return
	}
	if err := s.transport.Send(to, msg); err != nil {
		s.log.Warn("response send failed", zap.String("to", to), zap.Error(err))
	}
}

// handleStore commits a replica entry as received: the owner, creation time
// and TTL all belong to the publishing node.
func (s *Store) handleStore(origin, fromID string, reqID uint64, payload []byte) {
	var req storeRequest
	resp := storeResponse{Ok: true}
	if err := json.Unmarshal(payload, &req); err != nil {
		resp = storeResponse{Ok: false, Err: err.Error()}
	} else if req.Entry.Key == "" {
		resp = storeResponse{Ok: false, Err: ErrEmptyKey.Error()}
	} else if req.Entry.TTL < 0 {
		resp = storeResponse{Ok: false, Err: ErrNegativeTTL.Error()}
	} else if !req.Entry.Kind.Valid() {
		resp = storeResponse{Ok: false, Err: ErrInvalidKind.Error()}
	} else {
		s.commit(req.Entry)
	}

	b, _ := json.Marshal(resp)
	s.respond(OP_STORE, reqID, fromID, origin, b)
}

// handleFind answers from the local entry set only; remote fan-out never
// recurses through intermediate nodes.
func (s *Store) handleFind(origin, fromID string, reqID uint64, payload []byte) {
	var req findRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		b, _ := json.Marshal(findResponse{Ok: false, Err: err.Error()})
		s.respond(OP_FIND, reqID, fromID, origin, b)
		return
	}

	resp := findResponse{}
	if e, ok := s.lookupLocal(req.Key); ok {
		resp.Ok = true
		resp.Entry = &e
	}
	b, _ := json.Marshal(resp)
	s.respond(OP_FIND, reqID, fromID, origin, b)
}

func (s *Store) handlePing(origin, fromID string, reqID uint64) {
	b, _ := json.Marshal(pingResponse{Ok: true})
	s.respond(OP_PING, reqID, fromID, origin, b)
}

// handleJoin registers the announcing node and answers with this node's own
// identity so both sides end up in each other's routing tables. Unlike the
// other ops, the reply address comes from the request itself since the
// joiner cannot be in the routing table yet.
func (s *Store) handleJoin(reqID uint64, payload []byte) {
	var req joinRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.log.Warn("malformed join request", zap.Error(err))
		return
	}

	resp := joinResponse{Ok: true, NodeID: s.id, Anchors: s.anchors, Addr: s.addr}
	if err := s.AddPeer(req.NodeID, req.Anchors, req.Addr); err != nil {
		resp = joinResponse{Ok: false, Err: err.Error()}
	} else {
		s.log.Info("peer joined", zap.String("peer", req.NodeID), zap.String("addr", req.Addr))
	}

	b, _ := json.Marshal(resp)
	msg, err := s.cd.Wrap(OP_JOIN, reqID, true, s.id, b)
	if err != nil {
		return
	}
	if err := s.transport.Send(req.Addr, msg); err != nil {
		s.log.Warn("join response send failed", zap.String("to", req.Addr), zap.Error(err))
	}
}

func (s *Store) handleLeave(payload []byte) {
	var notice leaveNotice
	if err := json.Unmarshal(payload, &notice); err != nil {
		return
	}
	if s.table.Remove(notice.NodeID) {
		s.updatePeerGauge()
		s.log.Info("peer left", zap.String("peer", notice.NodeID))
	}
}
