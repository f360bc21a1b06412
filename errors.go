package signalr

import "fmt"

// ConfigurationError indicates an invalid [ConfigBuilder] state at Build time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("signalr: invalid configuration: %s", e.Reason)
}

// NegotiationFailedError indicates the HTTP negotiation request did not
// succeed.
type NegotiationFailedError struct {
	Status int
	Body   string
}

func (e *NegotiationFailedError) Error() string {
	return fmt.Sprintf("signalr: negotiation failed with status %d: %s", e.Status, e.Body)
}

// UnsupportedTransportError indicates the server did not offer a transport
// compatible with the negotiated hub protocol.
type UnsupportedTransportError struct {
	Required string
}

func (e *UnsupportedTransportError) Error() string {
	return fmt.Sprintf("signalr: server does not offer %s", e.Required)
}

// TransportError wraps a failure from the underlying [Transport].
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("signalr: transport %s failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// HandshakeFailedError indicates the handshake response carried an error or
// was malformed.
type HandshakeFailedError struct {
	Message string
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("signalr: handshake failed: %s", e.Message)
}

// ProtocolError indicates a fatal, connection-terminating protocol
// violation: a malformed frame, or a Completion carrying both a result and
// an error.
type ProtocolError struct {
	Where string
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("signalr: protocol error in %s: %v", e.Where, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// HubError is a non-fatal, per-operation error: the server's Completion
// message carried an error string.
type HubError struct {
	Message string
}

func (e *HubError) Error() string {
	return fmt.Sprintf("signalr: hub error: %s", e.Message)
}

// DecodeError indicates a Completion or StreamItem payload did not match
// the type the caller expected.
type DecodeError struct {
	Type  string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("signalr: failed to decode %s: %v", e.Type, e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Sentinel errors for conditions that carry no extra state.
var (
	// ErrConnectionLost is delivered to every pending id-keyed operation
	// when the connection drops, fatally or otherwise.
	ErrConnectionLost = fmt.Errorf("signalr: connection lost")

	// ErrReconnectExhausted is terminal: the reconnection policy gave up.
	ErrReconnectExhausted = fmt.Errorf("signalr: reconnection attempts exhausted")

	// ErrNotSupportedOnPlatform names the case of reconnection being
	// attempted where it cannot be supported. Reconnection in this package
	// always runs on goroutines, so no code path in it returns this error.
	ErrNotSupportedOnPlatform = fmt.Errorf("signalr: reconnection not supported on this platform")

	// ErrNotConnected is returned by facade operations issued after the
	// connection has reached a terminal Closed state.
	ErrNotConnected = fmt.Errorf("signalr: not connected")

	// ErrAlreadyRegistered is returned by Register when a callback target
	// is already bound.
	ErrAlreadyRegistered = fmt.Errorf("signalr: target already registered")
)
