package signalr

import (
	"encoding/binary"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// msgpackCodec implements codec for the binary hub protocol: each message
// is a MessagePack array whose first element is the numeric MessageType,
// preceded by a varint length prefix (spec §4.2). The handshake itself is
// never encoded by this codec — it is always JSON (spec §4.2, §6).
type msgpackCodec struct{}

var _ codec = msgpackCodec{}

func (msgpackCodec) protocol() HubProtocol { return MessagePackProtocol }

// putVarint writes a SignalR-style unsigned LEB128 varint length prefix.
func putVarint(n int) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	written := binary.PutUvarint(buf, uint64(n))
	return buf[:written]
}

func withLengthPrefix(body []byte) []byte {
	prefix := putVarint(len(body))
	out := make([]byte, 0, len(prefix)+len(body))
	out = append(out, prefix...)
	out = append(out, body...)
	return out
}

// encodeInvocation/encodeStreamInvocation/encodeCancel/encodePing return
// the raw MessagePack array body, without the length prefix — that is
// added uniformly by frameForProtocol so every codec's encode* methods
// share the same "raw body only" contract (spec §4.2).
func (msgpackCodec) encodeInvocation(m InvocationMessage) ([]byte, error) {
	args := make([]any, len(m.Arguments))
	for i, a := range m.Arguments {
		args[i] = msgpack.RawMessage(a)
	}
	arr := []any{int(Invocation), map[string]string{}, nullableString(m.InvocationID), m.Target, args, m.StreamIDs}
	return msgpack.Marshal(arr)
}

func (msgpackCodec) encodeStreamInvocation(m StreamInvocationMessage) ([]byte, error) {
	args := make([]any, len(m.Arguments))
	for i, a := range m.Arguments {
		args[i] = msgpack.RawMessage(a)
	}
	arr := []any{int(StreamInvocation), map[string]string{}, m.InvocationID, m.Target, args}
	return msgpack.Marshal(arr)
}

func (msgpackCodec) encodeCancel(m CancelInvocationMessage) ([]byte, error) {
	arr := []any{int(CancelInvocation), map[string]string{}, m.InvocationID}
	return msgpack.Marshal(arr)
}

func (msgpackCodec) encodePing() ([]byte, error) {
	arr := []any{int(Ping)}
	return msgpack.Marshal(arr)
}

func (msgpackCodec) encodeCompletion(m CompletionMessage) ([]byte, error) {
	switch {
	case m.Error != "":
		arr := []any{int(Completion), map[string]string{}, m.InvocationID, 1, m.Error}
		return msgpack.Marshal(arr)
	case m.HasResult():
		arr := []any{int(Completion), map[string]string{}, m.InvocationID, 3, msgpack.RawMessage(m.Result)}
		return msgpack.Marshal(arr)
	default:
		arr := []any{int(Completion), map[string]string{}, m.InvocationID, 2}
		return msgpack.Marshal(arr)
	}
}

// decode parses one length-prefixed MessagePack frame (the length prefix
// must already be stripped by the caller; see splitMsgpackFrames).
func (msgpackCodec) decode(frame []byte) (any, error) {
	var raw []msgpack.RawMessage
	if err := msgpack.Unmarshal(frame, &raw); err != nil {
		return nil, &ProtocolError{Where: "msgpack decode", Cause: err}
	}
	if len(raw) == 0 {
		return nil, &ProtocolError{Where: "msgpack decode", Cause: fmt.Errorf("empty message array")}
	}

	var typ int
	if err := msgpack.Unmarshal(raw[0], &typ); err != nil {
		return nil, &ProtocolError{Where: "msgpack type decode", Cause: err}
	}

	switch MessageType(typ) {
	case Ping:
		return PingMessage{Type: Ping}, nil
	case Close:
		m := CloseMessage{Type: Close}
		if len(raw) > 1 {
			var errStr *string
			_ = msgpack.Unmarshal(raw[1], &errStr)
			if errStr != nil {
				m.Error = *errStr
			}
		}
		if len(raw) > 2 {
			_ = msgpack.Unmarshal(raw[2], &m.AllowReconnect)
		}
		return m, nil
	case Invocation:
		m := InvocationMessage{Type: Invocation}
		if len(raw) > 2 {
			var id string
			_ = msgpack.Unmarshal(raw[2], &id)
			m.InvocationID = id
		}
		if len(raw) > 3 {
			_ = msgpack.Unmarshal(raw[3], &m.Target)
		}
		if len(raw) > 4 {
			var items []msgpack.RawMessage
			_ = msgpack.Unmarshal(raw[4], &items)
			for _, it := range items {
				m.Arguments = append(m.Arguments, []byte(it))
			}
		}
		return m, nil
	case StreamItem:
		m := StreamItemMessage{Type: StreamItem}
		if len(raw) > 2 {
			_ = msgpack.Unmarshal(raw[2], &m.InvocationID)
		}
		if len(raw) > 3 {
			m.Item = []byte(raw[3])
		}
		return m, nil
	case Completion:
		m := CompletionMessage{Type: Completion}
		if len(raw) > 2 {
			_ = msgpack.Unmarshal(raw[2], &m.InvocationID)
		}
		if len(raw) > 3 {
			var resultKind int
			_ = msgpack.Unmarshal(raw[3], &resultKind)
			switch resultKind {
			case 1: // error result
				if len(raw) > 4 {
					_ = msgpack.Unmarshal(raw[4], &m.Error)
				}
			case 3: // non-void result
				if len(raw) > 4 {
					m.Result = []byte(raw[4])
				}
			}
		}
		if m.HasResult() && m.Error != "" {
			return nil, &ProtocolError{Where: "msgpack completion decode", Cause: fmt.Errorf("completion %q carries both result and error", m.InvocationID)}
		}
		return m, nil
	case StreamInvocation:
		m := StreamInvocationMessage{Type: StreamInvocation}
		if len(raw) > 2 {
			_ = msgpack.Unmarshal(raw[2], &m.InvocationID)
		}
		if len(raw) > 3 {
			_ = msgpack.Unmarshal(raw[3], &m.Target)
		}
		return m, nil
	case CancelInvocation:
		m := CancelInvocationMessage{Type: CancelInvocation}
		if len(raw) > 2 {
			_ = msgpack.Unmarshal(raw[2], &m.InvocationID)
		}
		return m, nil
	default:
		return nil, nil
	}
}

func (msgpackCodec) encodeValue(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (msgpackCodec) decodeValue(raw []byte, out any) error {
	return msgpack.Unmarshal(raw, out)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
