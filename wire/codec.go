package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Codec defines the interface for encoding/decoding transport envelopes.
type Codec interface {
	// Wrap wraps the given payload in a transport envelope.
	// "from" is the sender identity (the node id).
	Wrap(op int, reqID uint64, isResp bool, from string, payload []byte) ([]byte, error)

	// Unwrap decodes a transport envelope into its components.
	// It returns the operation, request id, response flag, sender identity and payload.
	Unwrap(b []byte) (op int, reqID uint64, isResp bool, from string, payload []byte, err error)
}

// ---------------- JSON codec ----------------

type JSONCodec struct{}

type jsonEnvelope struct {
	Op         int    `json:"op"`
	ReqID      uint64 `json:"req_id"`
	IsResponse bool   `json:"is_response"`
	From       string `json:"from_id"`
	// base64-encoded by encoding/json so arbitrary payload bytes survive
	Payload []byte `json:"payload"`
}

func (JSONCodec) Wrap(op int, reqID uint64, isResp bool, from string, payload []byte) ([]byte, error) {
	env := jsonEnvelope{
		Op:         op,
		ReqID:      reqID,
		IsResponse: isResp,
		From:       from,
		Payload:    payload,
	}
	return json.Marshal(&env)
}

func (JSONCodec) Unwrap(b []byte) (int, uint64, bool, string, []byte, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return 0, 0, false, "", nil, err
	}
	return env.Op, env.ReqID, env.IsResponse, env.From, env.Payload, nil
}

// ---------------- Protobuf codec ----------------

// Envelope field numbers on the protobuf wire format. Encoded field by field
// with protowire so no generated code is required for a five-field message.
const (
	fieldOp         = 1 // varint
	fieldReqID      = 2 // varint
	fieldIsResponse = 3 // varint (bool)
	fieldFromID     = 4 // bytes
	fieldPayload    = 5 // bytes
)

type ProtobufCodec struct{}

func (ProtobufCodec) Wrap(op int, reqID uint64, isResp bool, from string, payload []byte) ([]byte, error) {
	b := protowire.AppendTag(nil, fieldOp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(op))
	b = protowire.AppendTag(b, fieldReqID, protowire.VarintType)
	b = protowire.AppendVarint(b, reqID)
	b = protowire.AppendTag(b, fieldIsResponse, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(isResp))
	b = protowire.AppendTag(b, fieldFromID, protowire.BytesType)
	b = protowire.AppendString(b, from)
	b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, payload)
	return b, nil
}

func (ProtobufCodec) Unwrap(b []byte) (int, uint64, bool, string, []byte, error) {
	var (
		op      int
		reqID   uint64
		isResp  bool
		from    string
		payload []byte
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldOp && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap op: %w", protowire.ParseError(m))
			}
			op = int(v)
			b = b[m:]
		case num == fieldReqID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap req_id: %w", protowire.ParseError(m))
			}
			reqID = v
			b = b[m:]
		case num == fieldIsResponse && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap is_response: %w", protowire.ParseError(m))
			}
			isResp = protowire.DecodeBool(v)
			b = b[m:]
		case num == fieldFromID && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap from_id: %w", protowire.ParseError(m))
			}
			from = string(v)
			b = b[m:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap payload: %w", protowire.ParseError(m))
			}
			payload = append([]byte(nil), v...)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return 0, 0, false, "", nil, fmt.Errorf("protobuf unwrap field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}

	return op, reqID, isResp, from, payload, nil
}
