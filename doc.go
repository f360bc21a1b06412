// Package signalr implements the core of a cross-platform SignalR hub
// client: the protocol state machine, the invocation/stream/callback
// multiplexer, and the completion primitives that bridge a single inbound
// message stream onto many concurrent pending operations.
//
// # Core Abstraction
//
// A [Client] speaks the SignalR hub protocol (JSON or MessagePack) over a
// [Transport], multiplexing request/response invocations ([Invoke]),
// server streams ([Enumerate]), and server-initiated callbacks
// ([Client.Register]) over one connection, keyed by string invocation ids.
//
// # Out of scope
//
// TLS setup, the concrete WebSocket framing below [Transport], the HTTP
// client used for negotiation beyond the stdlib default, logging backends,
// and a test server are external collaborators, not part of this package.
package signalr
