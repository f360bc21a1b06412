package signalr

import (
	"encoding/json"
	"fmt"
)

// HubProtocol selects the wire encoding used for hub messages after the
// handshake. The handshake itself is always JSON, regardless of this
// choice (spec §4.2, §6).
type HubProtocol int

const (
	// JSONProtocol frames messages as concatenated JSON objects separated
	// by the record separator.
	JSONProtocol HubProtocol = iota

	// MessagePackProtocol frames messages as length-prefixed MessagePack
	// arrays.
	MessagePackProtocol
)

func (p HubProtocol) String() string {
	switch p {
	case JSONProtocol:
		return "json"
	case MessagePackProtocol:
		return "messagepack"
	default:
		return "unknown"
	}
}

// codec encodes outbound messages and decodes inbound frames for one hub
// protocol. It is the only site that branches on HubProtocol (spec §9).
type codec interface {
	protocol() HubProtocol

	// encodeInvocation/encodeStreamInvocation/encodeCancel/encodePing
	// serialize one outbound message, NOT including any frame prefix
	// (record separator or length prefix) — callers add that via
	// frameForProtocol before handing the frame to the transport.
	encodeInvocation(m InvocationMessage) ([]byte, error)
	encodeStreamInvocation(m StreamInvocationMessage) ([]byte, error)
	encodeCancel(m CancelInvocationMessage) ([]byte, error)
	encodePing() ([]byte, error)
	encodeCompletion(m CompletionMessage) ([]byte, error)

	// decode parses one raw frame body (post record-separator-split for
	// JSON, post length-prefix-split for MessagePack) into its Message
	// variant.
	decode(frame []byte) (any, error)

	// encodeValue and decodeValue (de)serialize the user-level payloads
	// carried inside Arguments/Result/Item fields, in whichever wire
	// encoding this codec's hub protocol uses. Every conversion between a
	// user Go value and the raw bytes stored in those fields must go
	// through these two methods, so the codec stays the only site that
	// branches on hub protocol (spec §9).
	encodeValue(v any) ([]byte, error)
	decodeValue(raw []byte, out any) error
}

func codecFor(p HubProtocol) codec {
	switch p {
	case MessagePackProtocol:
		return msgpackCodec{}
	default:
		return jsonCodec{}
	}
}

// jsonCodec implements codec for the text hub protocol: concatenated JSON
// objects separated by 0x1e, dispatched by the integer `type` field. This
// generalizes the teacher's MessageFormat, which only ever wrapped a
// pre-serialized string.
type jsonCodec struct{}

var _ codec = jsonCodec{}

func (jsonCodec) protocol() HubProtocol { return JSONProtocol }

func (jsonCodec) encodeInvocation(m InvocationMessage) ([]byte, error) {
	m.Type = Invocation
	return json.Marshal(m)
}

func (jsonCodec) encodeStreamInvocation(m StreamInvocationMessage) ([]byte, error) {
	m.Type = StreamInvocation
	return json.Marshal(m)
}

func (jsonCodec) encodeCancel(m CancelInvocationMessage) ([]byte, error) {
	m.Type = CancelInvocation
	return json.Marshal(m)
}

func (jsonCodec) encodePing() ([]byte, error) {
	return json.Marshal(PingMessage{Type: Ping})
}

func (jsonCodec) encodeCompletion(m CompletionMessage) ([]byte, error) {
	m.Type = Completion
	return json.Marshal(m)
}

func (jsonCodec) encodeValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) decodeValue(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

func (jsonCodec) decode(frame []byte) (any, error) {
	var probe messageTypeOnly
	if err := json.Unmarshal(frame, &probe); err != nil {
		return nil, &ProtocolError{Where: "json decode", Cause: err}
	}

	switch probe.Type {
	case Invocation:
		var m InvocationMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return nil, &ProtocolError{Where: "invocation decode", Cause: err}
		}
		return m, nil
	case StreamItem:
		var m StreamItemMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return nil, &ProtocolError{Where: "stream item decode", Cause: err}
		}
		return m, nil
	case Completion:
		var m CompletionMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return nil, &ProtocolError{Where: "completion decode", Cause: err}
		}
		if m.HasResult() && m.Error != "" {
			return nil, &ProtocolError{Where: "completion decode", Cause: fmt.Errorf("completion %q carries both result and error", m.InvocationID)}
		}
		return m, nil
	case StreamInvocation:
		var m StreamInvocationMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return nil, &ProtocolError{Where: "stream invocation decode", Cause: err}
		}
		return m, nil
	case CancelInvocation:
		var m CancelInvocationMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return nil, &ProtocolError{Where: "cancel invocation decode", Cause: err}
		}
		return m, nil
	case Ping:
		return PingMessage{Type: Ping}, nil
	case Close:
		var m CloseMessage
		if err := json.Unmarshal(frame, &m); err != nil {
			return nil, &ProtocolError{Where: "close decode", Cause: err}
		}
		return m, nil
	default:
		return nil, nil // unknown type: logged and dropped by the caller
	}
}

// decodeHandshakeResponse parses the first post-handshake frame, which
// never carries a `type` field.
func decodeHandshakeResponse(frame []byte) (HandshakeResponseMessage, error) {
	var m HandshakeResponseMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return m, &ProtocolError{Where: "handshake response decode", Cause: err}
	}
	return m, nil
}

// encodeHandshakeRequest renders the fixed JSON handshake request frame,
// which is always text + record-separator regardless of HubProtocol.
func encodeHandshakeRequest(protocol HubProtocol) []byte {
	req := HandshakeRequestMessage{Protocol: protocol.String(), Version: 1}
	b, _ := json.Marshal(req) // struct is fixed-shape; cannot fail
	return terminate(b)
}
