package signalr

import "encoding/json"

// MessageType identifies the variant of a hub protocol message, per the
// SignalR wire protocol's numeric `type` field.
type MessageType int

const (
	// Invocation indicates a request to invoke a particular method (the
	// Target) with the provided Arguments on the remote endpoint.
	Invocation MessageType = iota + 1

	// StreamItem indicates an individual item of streamed response data
	// from a previous StreamInvocation message.
	StreamItem

	// Completion indicates a previous Invocation or StreamInvocation has
	// completed. Carries an error if the invocation concluded with one, or
	// the result of a non-streaming method invocation. The result is
	// absent for void methods. For streaming invocations no further
	// StreamItem messages follow.
	Completion

	// StreamInvocation indicates a request to invoke a streaming method
	// (the Target) with the provided Arguments on the remote endpoint.
	StreamInvocation

	// CancelInvocation is sent by the client to cancel a streaming
	// invocation on the server.
	CancelInvocation

	// Ping is sent by either party to check if the connection is active.
	Ping

	// Close is sent by the server when a connection is closed. Carries an
	// error if the connection was closed because of one.
	Close
)

// messageTypeOnly is used to peek at a frame's type before unmarshaling the
// full variant.
type messageTypeOnly struct {
	Type MessageType `json:"type"`
}

// InvocationMessage is a request to invoke target with args. InvocationID
// is empty for a fire-and-forget send, in which case no Completion is
// expected.
type InvocationMessage struct {
	Type         MessageType `json:"type"`
	InvocationID string      `json:"invocationId,omitempty"`
	Target       string      `json:"target"`
	Arguments    []json.RawMessage `json:"arguments"`
	StreamIDs    []string    `json:"streamIds,omitempty"`
}

// StreamInvocationMessage is a request to invoke a streaming method. Unlike
// InvocationMessage, InvocationID is always present.
type StreamInvocationMessage struct {
	Type         MessageType       `json:"type"`
	InvocationID string            `json:"invocationId"`
	Target       string            `json:"target"`
	Arguments    []json.RawMessage `json:"arguments"`
}

// StreamItemMessage carries one item of a streamed response.
type StreamItemMessage struct {
	Type         MessageType     `json:"type"`
	InvocationID string          `json:"invocationId"`
	Item         json.RawMessage `json:"item"`
}

// CompletionMessage reports the outcome of a previous Invocation or
// StreamInvocation. Result and Error must not both be present; a message
// carrying both is a ProtocolError.
type CompletionMessage struct {
	Type         MessageType     `json:"type"`
	InvocationID string          `json:"invocationId"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// HasResult reports whether the completion carried a result payload.
func (m *CompletionMessage) HasResult() bool {
	return len(m.Result) > 0 && string(m.Result) != "null"
}

// PingMessage is exchanged by either party to keep the connection alive.
type PingMessage struct {
	Type MessageType `json:"type"`
}

// CloseMessage is sent by the server when it closes the connection.
type CloseMessage struct {
	Type           MessageType `json:"type"`
	Error          string      `json:"error,omitempty"`
	AllowReconnect bool        `json:"allowReconnect,omitempty"`
}

// CancelInvocationMessage cancels a previously started streaming
// invocation.
type CancelInvocationMessage struct {
	Type         MessageType `json:"type"`
	InvocationID string      `json:"invocationId"`
}

// HandshakeRequestMessage is the first frame the client sends, selecting
// the hub protocol. It never carries a `type` field.
type HandshakeRequestMessage struct {
	// Protocol is the name of the protocol to use for messages exchanged
	// between the server and the client: "json" or "messagepack".
	Protocol string `json:"protocol"`

	// Version must always be 1, for both protocols.
	Version int `json:"version"`
}

// HandshakeResponseMessage is the server's acknowledgement of the
// handshake request. Error is set if the server rejected the requested
// protocol.
type HandshakeResponseMessage struct {
	Error string `json:"error,omitempty"`
}
