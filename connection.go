package signalr

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tomb "gopkg.in/tomb.v2"
)

// connectionState is the closed set of states in spec §4.5's transition
// diagram.
type connectionState int

const (
	stateNotConnected connectionState = iota
	stateNegotiating
	stateHandshaking
	stateActive
	stateReconnecting
	stateClosing
	stateClosed
)

func (s connectionState) String() string {
	switch s {
	case stateNotConnected:
		return "NotConnected"
	case stateNegotiating:
		return "Negotiating"
	case stateHandshaking:
		return "Handshaking"
	case stateActive:
		return "Active"
	case stateReconnecting:
		return "Reconnecting"
	case stateClosing:
		return "Closing"
	case stateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Connection owns the transport, the registry, and the receive pump. It is
// the shared core behind every [Client] handle (spec §9).
type Connection struct {
	cfg      *Config
	registry *Registry
	codec    codec
	logger   SLogger
	clock    Clock

	newTransport func() Transport
	transport    Transport

	stateMu sync.Mutex
	state   connectionState
	lastErr error

	tmb tomb.Tomb

	lastSendMu sync.Mutex
	lastSend   time.Time

	userClosed bool
}

// newConnection wires a fresh Connection. newTransport lets tests supply a
// fake Transport; production callers pass a factory returning a fresh
// *wsTransport.
func newConnection(cfg *Config, newTransport func() Transport) *Connection {
	c := &Connection{
		cfg:          cfg,
		codec:        codecFor(cfg.Protocol),
		logger:       cfg.Logger,
		clock:        cfg.Clock,
		newTransport: newTransport,
		state:        stateNotConnected,
	}
	c.registry = NewRegistry(cfg.Logger, nil)
	return c
}

func (c *Connection) setState(s connectionState) {
	c.stateMu.Lock()
	prev := c.state
	c.state = s
	c.stateMu.Unlock()
	if prev != s {
		c.logger.Info("signalr: connection state transition", "from", prev.String(), "to", s.String())
	}
}

func (c *Connection) currentState() connectionState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// Connect runs negotiate → handshake → process, then spawns the receive
// pump and keepalive timer (spec §4.5).
func (c *Connection) Connect(ctx context.Context) error {
	c.transport = c.newTransport()

	c.setState(stateNegotiating)
	result, err := negotiate(ctx, c.cfg)
	if err != nil {
		c.setState(stateClosed)
		return err
	}

	c.setState(stateHandshaking)
	if err := c.handshake(ctx, result); err != nil {
		c.setState(stateClosed)
		return err
	}

	c.setState(stateActive)
	c.tmb = tomb.Tomb{}
	c.tmb.Go(c.receivePump)
	c.tmb.Go(c.keepAliveLoop)
	return nil
}

func (c *Connection) handshake(ctx context.Context, neg *NegotiationResult) error {
	wsURL := webSocketURL(c.cfg, neg.ConnectionID)
	headers := http.Header{}
	applyCredentials(headers, c.cfg.Credentials)

	if err := c.transport.Connect(wsURL, headers); err != nil {
		return err
	}

	req := encodeHandshakeRequest(c.cfg.Protocol)
	if err := c.transport.Send(req, TextFrame); err != nil {
		return &HandshakeFailedError{Message: err.Error()}
	}

	frame, _, err := c.transport.Recv()
	if err != nil {
		return &HandshakeFailedError{Message: err.Error()}
	}

	frames := splitFrames(frame)
	if len(frames) == 0 {
		return &HandshakeFailedError{Message: "empty handshake response"}
	}

	resp, err := decodeHandshakeResponse(frames[0])
	if err != nil {
		return &HandshakeFailedError{Message: err.Error()}
	}
	if resp.Error != "" {
		return &HandshakeFailedError{Message: resp.Error}
	}

	c.logger.Info("signalr: handshake successful", "protocol", c.cfg.Protocol.String())
	return nil
}

// send writes one already-encoded, already-framed message and records the
// send time for the keepalive timer.
func (c *Connection) send(frame []byte, kind FrameKind) error {
	c.lastSendMu.Lock()
	c.lastSend = c.clock.Now()
	c.lastSendMu.Unlock()
	return c.transport.Send(frame, kind)
}

func (c *Connection) frameKind() FrameKind {
	if c.cfg.Protocol == MessagePackProtocol {
		return BinaryFrame
	}
	return TextFrame
}

// receivePump is the single goroutine that owns the transport's read side
// (spec §4.5, §5). It splits frames, decodes them, and routes them through
// the registry.
func (c *Connection) receivePump() error {
	for {
		select {
		case <-c.tmb.Dying():
			return nil
		default:
		}

		raw, kind, err := c.transport.Recv()
		if err != nil {
			return c.onDisconnected(err)
		}

		var frames [][]byte
		if kind == BinaryFrame {
			frames, err = splitMsgpackFrames(raw)
			if err != nil {
				return c.onFatal(&ProtocolError{Where: "frame split", Cause: err})
			}
		} else {
			frames = splitFrames(raw)
		}

		for _, f := range frames {
			msg, err := c.codec.decode(f)
			if err != nil {
				return c.onFatal(err)
			}
			if msg == nil {
				c.logger.Warn("signalr: dropping message of unknown type")
				continue
			}
			if err := c.registry.Route(msg, func(b []byte) error {
				return c.send(b, c.frameKind())
			}, c.codec); err != nil {
				c.logger.Error("signalr: routing error", "error", err)
			}
			if cl, ok := msg.(CloseMessage); ok {
				return c.onServerClose(cl)
			}
		}
	}
}

func (c *Connection) onFatal(err error) error {
	c.logger.Error("signalr: fatal protocol error, closing connection", "error", err)
	c.registry.FailAll(ErrConnectionLost)
	c.setState(stateClosed)
	c.lastErr = err
	return err
}

func (c *Connection) onServerClose(cl CloseMessage) error {
	c.registry.FailAll(ErrConnectionLost)

	if !cl.AllowReconnect || c.cfg.Reconnect == nil {
		c.setState(stateClosed)
		if cl.Error != "" {
			c.lastErr = fmt.Errorf("signalr: server closed connection: %s", cl.Error)
		}
		return c.lastErr
	}

	return c.beginReconnect()
}

func (c *Connection) onDisconnected(cause error) error {
	if c.userClosed {
		c.setState(stateClosed)
		return nil
	}

	c.registry.FailAll(ErrConnectionLost)
	return c.beginReconnect()
}

// beginReconnect hands control to the reconnection controller: automatic
// mode retries in-process, manual mode surfaces a [ReconnectionHandler] to
// the user-supplied disconnection handler and does nothing further (spec
// §4.6).
func (c *Connection) beginReconnect() error {
	c.setState(stateReconnecting)

	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(&ReconnectionHandler{conn: c})
		return nil
	}

	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		delay, ok := c.cfg.Reconnect.next()
		if !ok {
			c.setState(stateClosed)
			c.lastErr = ErrReconnectExhausted
			return ErrReconnectExhausted
		}

		c.logger.Info("signalr: reconnecting", "attempt", attempt, "delay", delay.String())
		if err := c.clock.Sleep(ctx, delay); err != nil {
			c.setState(stateClosed)
			return err
		}

		if err := c.reconnectOnce(ctx); err != nil {
			c.logger.Warn("signalr: reconnect attempt failed", "error", err)
			continue
		}

		c.cfg.Reconnect.reset()
		return nil
	}
}

// reconnectOnce runs negotiate + handshake once and, on success,
// transitions back to Active and restarts the receive pump and keepalive
// loop. Callback registrations are not replayed: they were never removed
// from the registry (spec §4.6).
func (c *Connection) reconnectOnce(ctx context.Context) error {
	c.transport = c.newTransport()

	result, err := negotiate(ctx, c.cfg)
	if err != nil {
		return err
	}
	if err := c.handshake(ctx, result); err != nil {
		return err
	}

	c.setState(stateActive)
	c.tmb = tomb.Tomb{}
	c.tmb.Go(c.receivePump)
	c.tmb.Go(c.keepAliveLoop)
	return nil
}

// keepAliveLoop emits a Ping whenever no outbound send has happened for
// cfg.KeepAlive, per spec §4.4/§4.5.
func (c *Connection) keepAliveLoop() error {
	ticker := time.NewTicker(c.cfg.KeepAlive / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.tmb.Dying():
			return nil
		case <-ticker.C:
			c.lastSendMu.Lock()
			idle := c.clock.Now().Sub(c.lastSend)
			c.lastSendMu.Unlock()

			if idle < c.cfg.KeepAlive {
				continue
			}

			frame, err := c.codec.encodePing()
			if err != nil {
				continue
			}
			if err := c.send(frameForProtocol(c.codec, frame), c.frameKind()); err != nil {
				c.logger.Warn("signalr: keepalive ping failed", "error", err)
			}
		}
	}
}

// Disconnect is the one explicit user action that closes the shared
// connection, regardless of how many [Client] clones exist (spec §9).
func (c *Connection) Disconnect(ctx context.Context) error {
	c.setState(stateClosing)
	c.userClosed = true

	if c.transport != nil {
		_ = c.transport.Close(1000, "client disconnect")
	}

	c.tmb.Kill(nil)
	_ = c.tmb.Wait()

	c.registry.FailAll(ErrConnectionLost)
	c.setState(stateClosed)
	return nil
}
