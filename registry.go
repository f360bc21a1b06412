package signalr

import (
	"encoding/json"
	"fmt"
	"sync"
)

// HandlerFunc handles a server-initiated callback invocation.
type HandlerFunc func(ctx *InvocationContext)

// InvocationContext is passed to a [HandlerFunc] for one server-initiated
// Invocation.
type InvocationContext struct {
	args []json.RawMessage
	enc  codec

	// Complete sends a Completion{result} back to the server. It is nil
	// when the inbound Invocation was fire-and-forget (no InvocationID),
	// in which case no response is expected or possible.
	Complete func(value any)
}

// Argument decodes the positional argument at index i into out, using
// whichever hub protocol is active on the connection (spec §9: the codec
// is the only site that branches on hub protocol).
func (c *InvocationContext) Argument(i int, out any) error {
	if i < 0 || i >= len(c.args) {
		return &DecodeError{Type: fmt.Sprintf("argument[%d]", i), Cause: fmt.Errorf("index out of range (have %d arguments)", len(c.args))}
	}
	if err := c.enc.decodeValue(c.args[i], out); err != nil {
		return &DecodeError{Type: fmt.Sprintf("argument[%d]", i), Cause: err}
	}
	return nil
}

// pendingAction is the closed set of things a registry entry can be: an
// awaited single invocation, or an in-progress enumeration. Callback
// entries live in a separate target-keyed map (spec §3, §4.3).
type pendingAction interface {
	completeResult(result json.RawMessage) error
	completeError(err error)
	pushItem(item json.RawMessage) error
}

type invocationAction struct {
	handle *OneShotHandle[json.RawMessage]
}

func (a *invocationAction) completeResult(result json.RawMessage) error {
	a.handle.Complete(result)
	return nil
}

func (a *invocationAction) completeError(err error) {
	a.handle.Fail(err)
}

func (a *invocationAction) pushItem(json.RawMessage) error {
	return fmt.Errorf("received StreamItem for a non-streaming invocation")
}

type enumerationAction struct {
	handle *StreamProducerHandle[json.RawMessage]
}

func (a *enumerationAction) completeResult(json.RawMessage) error {
	a.handle.Close(nil)
	return nil
}

func (a *enumerationAction) completeError(err error) {
	a.handle.Close(err)
}

func (a *enumerationAction) pushItem(item json.RawMessage) error {
	a.handle.Push(item)
	return nil
}

type callbackEntry struct {
	target  string
	handler HandlerFunc
}

// Registry maps invocation ids and callback targets to pending actions. It
// is the single point of shared mutable state between the receive pump and
// the facade (spec §4.3, §5): one mutex guards the id-keyed map, the
// target-keyed map, and the invocation counter, and every critical section
// is O(1).
type Registry struct {
	mu        sync.Mutex
	byID      map[string]pendingAction
	byTarget  map[string]*callbackEntry
	counters  map[string]uint64
	logger    SLogger
	dispatch  func(func())
}

// NewRegistry creates an empty [Registry]. dispatch, if non-nil, is used to
// run callback handlers detached from the receive pump (spec §5); if nil,
// handlers run on a new goroutine directly.
func NewRegistry(logger SLogger, dispatch func(func())) *Registry {
	if logger == nil {
		logger = DefaultSLogger()
	}
	if dispatch == nil {
		dispatch = func(f func()) { go f() }
	}
	return &Registry{
		byID:     make(map[string]pendingAction),
		byTarget: make(map[string]*callbackEntry),
		counters: make(map[string]uint64),
		logger:   logger,
		dispatch: dispatch,
	}
}

// NextInvocationID assigns the next id for target, formatted
// "{Target}_{counter}" with counter starting at 1 and monotonically
// increasing per target per connection (spec's InvocationId format).
func (r *Registry) NextInvocationID(target string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[target]++
	return fmt.Sprintf("%s_%d", target, r.counters[target])
}

// RegisterInvocation inserts an id-keyed invocation entry and returns the
// future the caller awaits. Must be called before the invocation is sent.
func (r *Registry) RegisterInvocation(id string) *OneShotFuture[json.RawMessage] {
	handle, future := NewOneShot[json.RawMessage]()
	r.mu.Lock()
	r.byID[id] = &invocationAction{handle: handle}
	r.mu.Unlock()
	return future
}

// RegisterEnumeration inserts an id-keyed enumeration entry and returns the
// stream consumer the caller iterates. Must be called before the stream
// invocation is sent.
func (r *Registry) RegisterEnumeration(id string) *StreamConsumer[json.RawMessage] {
	handle, consumer := NewStream[json.RawMessage]()
	r.mu.Lock()
	r.byID[id] = &enumerationAction{handle: handle}
	r.mu.Unlock()
	return consumer
}

// RegisterCallback inserts a target-keyed callback entry. It never
// auto-removes; callers must Unregister explicitly. Callback entries
// survive reconnection (spec's invariant).
func (r *Registry) RegisterCallback(target string, handler HandlerFunc) (*Unregister, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byTarget[target]; exists {
		return nil, ErrAlreadyRegistered
	}
	r.byTarget[target] = &callbackEntry{target: target, handler: handler}
	return &Unregister{registry: r, target: target}, nil
}

// Unregister removes a previously registered callback.
type Unregister struct {
	registry *Registry
	target   string
}

// Unregister removes the callback entry. Idempotent.
func (u *Unregister) Unregister() {
	u.registry.mu.Lock()
	delete(u.registry.byTarget, u.target)
	u.registry.mu.Unlock()
}

// Route is the dispatcher's entry point, called solely by the receive
// pump. It advances the matching pending action per the routing table in
// spec §4.3. send is used to reply to Ping and to send Completions for
// callback invocations that expect a response.
func (r *Registry) Route(msg any, send func([]byte) error, enc codec) error {
	switch m := msg.(type) {
	case CompletionMessage:
		return r.routeCompletion(m)
	case StreamItemMessage:
		return r.routeStreamItem(m)
	case InvocationMessage:
		return r.routeInvocation(m, send, enc)
	case PingMessage:
		frame, err := enc.encodePing()
		if err != nil {
			return err
		}
		return send(frameForProtocol(enc, frame))
	case CloseMessage:
		// Shutdown and reconnection hand-off is the receive pump's
		// responsibility (spec §4.5, §4.6), not the registry's.
		return nil
	default:
		r.logger.Warn("signalr: dropping unhandled message", "value", m)
		return nil
	}
}

func (r *Registry) routeCompletion(m CompletionMessage) error {
	r.mu.Lock()
	action, ok := r.byID[m.InvocationID]
	if ok {
		delete(r.byID, m.InvocationID)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("signalr: completion for unknown invocation id", "id", m.InvocationID)
		return nil
	}

	if m.Error != "" {
		action.completeError(&HubError{Message: m.Error})
		return nil
	}
	return action.completeResult(m.Result)
}

func (r *Registry) routeStreamItem(m StreamItemMessage) error {
	r.mu.Lock()
	action, ok := r.byID[m.InvocationID]
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("signalr: stream item for unknown invocation id, discarding", "id", m.InvocationID)
		return nil
	}
	return action.pushItem(m.Item)
}

func (r *Registry) routeInvocation(m InvocationMessage, send func([]byte) error, enc codec) error {
	r.mu.Lock()
	entry, ok := r.byTarget[m.Target]
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("signalr: invocation for unregistered target, discarding", "target", m.Target)
		return nil
	}

	ctx := &InvocationContext{args: m.Arguments, enc: enc}
	if m.InvocationID != "" {
		ctx.Complete = func(value any) {
			result, err := enc.encodeValue(value)
			if err != nil {
				r.logger.Error("signalr: failed to marshal callback result", "error", err)
				return
			}
			completion := CompletionMessage{InvocationID: m.InvocationID, Result: json.RawMessage(result)}
			frame, err := enc.encodeCompletion(completion)
			if err != nil {
				r.logger.Error("signalr: failed to marshal completion", "error", err)
				return
			}
			if err := send(frameForProtocol(enc, frame)); err != nil {
				r.logger.Error("signalr: failed to send callback completion", "error", err)
			}
		}
	}

	r.dispatch(func() { entry.handler(ctx) })
	return nil
}

// FailAll completes every id-keyed entry with err (used for
// ErrConnectionLost on fatal disconnect). Target-keyed callback entries are
// left untouched so they survive reconnection.
func (r *Registry) FailAll(err error) {
	r.mu.Lock()
	actions := r.byID
	r.byID = make(map[string]pendingAction)
	r.mu.Unlock()

	for _, a := range actions {
		a.completeError(err)
	}
}

func frameForProtocol(enc codec, body []byte) []byte {
	if enc.protocol() == MessagePackProtocol {
		return withLengthPrefix(body)
	}
	return terminate(body)
}
