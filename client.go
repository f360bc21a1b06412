package signalr

import (
	"context"
	"encoding/json"
	"sync/atomic"
)

// Client is the hub-client facade: invoke, send, enumerate, register,
// disconnect (spec §4.7). It is clonable: a clone shares the transport,
// the registry, and the connection state (spec §9).
type Client struct {
	conn     *Connection
	refcount *int32
}

// Dial builds a [Connection] from cfg and connects it, returning the first
// [Client] handle. newTransport defaults to the real WebSocket transport;
// pass a fake for testing.
func Dial(ctx context.Context, cfg *Config, newTransport func() Transport) (*Client, error) {
	if newTransport == nil {
		newTransport = func() Transport { return newWSTransport() }
	}

	conn := newConnection(cfg, newTransport)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}

	var rc int32 = 1
	return &Client{conn: conn, refcount: &rc}, nil
}

// Clone returns a new handle sharing this client's connection. Clones do
// not independently disconnect; teardown happens only when Disconnect is
// called explicitly (spec §9).
func (c *Client) Clone() *Client {
	atomic.AddInt32(c.refcount, 1)
	return &Client{conn: c.conn, refcount: c.refcount}
}

func (c *Client) ensureActive() error {
	if c.conn.currentState() == stateClosed {
		return ErrNotConnected
	}
	return nil
}

// marshalArgs encodes args through enc, so Arguments always carries bytes
// in the connection's active hub-protocol encoding rather than bare JSON
// (spec §9: the codec is the only site that branches on hub protocol).
func marshalArgs(enc codec, args []any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := enc.encodeValue(a)
		if err != nil {
			return nil, &DecodeError{Type: "argument", Cause: err}
		}
		out[i] = b
	}
	return out, nil
}

// Invoke calls target with args and awaits the decoded result (spec
// §4.7). The invocation id is assigned "{target}_{n}" with n the nth
// invoke of target on this connection.
func Invoke[T any](ctx context.Context, c *Client, target string, args ...any) (T, error) {
	var zero T
	if err := c.ensureActive(); err != nil {
		return zero, err
	}

	encodedArgs, err := marshalArgs(c.conn.codec, args)
	if err != nil {
		return zero, err
	}

	id := c.conn.registry.NextInvocationID(target)
	future := c.conn.registry.RegisterInvocation(id)

	msg := InvocationMessage{InvocationID: id, Target: target, Arguments: encodedArgs}
	frame, err := c.conn.codec.encodeInvocation(msg)
	if err != nil {
		return zero, err
	}
	if err := c.conn.send(frameForProtocol(c.conn.codec, frame), c.conn.frameKind()); err != nil {
		return zero, &TransportError{Op: "invoke", Cause: err}
	}

	result, err := future.Wait(ctx)
	if err != nil {
		return zero, err
	}

	if err := c.conn.codec.decodeValue(result, &zero); err != nil {
		return zero, &DecodeError{Type: target, Cause: err}
	}
	return zero, nil
}

// Send emits a fire-and-forget Invocation with no id. It returns as soon as
// the bytes are handed to the transport; no registry entry is created and
// no Completion is expected (spec §4.7).
func (c *Client) Send(ctx context.Context, target string, args ...any) error {
	if err := c.ensureActive(); err != nil {
		return err
	}

	encodedArgs, err := marshalArgs(c.conn.codec, args)
	if err != nil {
		return err
	}

	msg := InvocationMessage{Target: target, Arguments: encodedArgs}
	frame, err := c.conn.codec.encodeInvocation(msg)
	if err != nil {
		return err
	}
	if err := c.conn.send(frameForProtocol(c.conn.codec, frame), c.conn.frameKind()); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	return nil
}

// TypedStream decodes raw stream items as they arrive.
type TypedStream[T any] struct {
	consumer *StreamConsumer[json.RawMessage]
	enc      codec
}

// Next decodes and returns the next item, or (zero, false, nil) at clean
// end-of-stream, or (zero, false, err) if the stream ended in error.
func (s *TypedStream[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	raw, ok, err := s.consumer.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	if err := s.enc.decodeValue(raw, &zero); err != nil {
		return zero, false, &DecodeError{Type: "stream item", Cause: err}
	}
	return zero, true, nil
}

// Enumerate calls the streaming method target and returns a stream that
// yields decoded items until the server sends a terminal Completion (spec
// §4.7). Any Completion error aborts the stream.
func Enumerate[T any](ctx context.Context, c *Client, target string, args ...any) (*TypedStream[T], error) {
	if err := c.ensureActive(); err != nil {
		return nil, err
	}

	encodedArgs, err := marshalArgs(c.conn.codec, args)
	if err != nil {
		return nil, err
	}

	id := c.conn.registry.NextInvocationID(target)
	consumer := c.conn.registry.RegisterEnumeration(id)

	msg := StreamInvocationMessage{InvocationID: id, Target: target, Arguments: encodedArgs}
	frame, err := c.conn.codec.encodeStreamInvocation(msg)
	if err != nil {
		return nil, err
	}
	if err := c.conn.send(frameForProtocol(c.conn.codec, frame), c.conn.frameKind()); err != nil {
		return nil, &TransportError{Op: "enumerate", Cause: err}
	}

	return &TypedStream[T]{consumer: consumer, enc: c.conn.codec}, nil
}

// Register binds handler to target for server-initiated callback
// invocations. The returned [Unregister] removes the binding; until then it
// survives reconnection (spec §4.7, §3).
func (c *Client) Register(target string, handler HandlerFunc) (*Unregister, error) {
	return c.conn.registry.RegisterCallback(target, handler)
}

// Disconnect is idempotent user-initiated close. It is effective
// regardless of how many clones of this client exist (spec §9's corrected
// semantics — see DESIGN.md).
func (c *Client) Disconnect(ctx context.Context) error {
	return c.conn.Disconnect(ctx)
}

// reconnectionHandler returns a [ReconnectionHandler] bound to this
// client's connection, the same kind of handle that manual mode delivers
// to the disconnection handler.
func (c *Client) reconnectionHandler() *ReconnectionHandler {
	return &ReconnectionHandler{conn: c.conn}
}
