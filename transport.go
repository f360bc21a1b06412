package signalr

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the
	// peer.
	pongWait = 60 * time.Second

	// maxMessageSize is the maximum message size accepted from the peer.
	maxMessageSize = 1 << 20
)

// FrameKind distinguishes WebSocket text frames (JSON hub protocol) from
// binary frames (MessagePack hub protocol).
type FrameKind int

const (
	TextFrame FrameKind = iota
	BinaryFrame
)

// Transport is the only surface the core uses to move bytes (spec §4.4).
// Connect/Send/Recv/Close are the sole external collaborator this package
// depends on for networking.
type Transport interface {
	// Connect dials url with the given headers.
	Connect(url string, headers http.Header) error

	// Send writes one complete frame of the given kind. Sends are
	// serialized by the implementation; callers may call Send from
	// multiple goroutines.
	Send(frame []byte, kind FrameKind) error

	// Recv blocks for the next complete message, returning its bytes and
	// kind. It is called by exactly one goroutine, the receive pump.
	Recv() ([]byte, FrameKind, error)

	// Close closes the underlying connection with the given close code
	// and reason.
	Close(code int, reason string) error
}

// wsTransport is the only concrete [Transport]: a thin generalization of
// the teacher's Client.Conn/send/read/stop methods onto the full Transport
// contract, adding write serialization and keepalive deadlines.
type wsTransport struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

var _ Transport = (*wsTransport)(nil)

func newWSTransport() *wsTransport {
	return &wsTransport{}
}

func (t *wsTransport) Connect(rawURL string, headers http.Header) error {
	if _, err := url.Parse(rawURL); err != nil {
		return &TransportError{Op: "connect", Cause: err}
	}

	conn, _, err := websocket.DefaultDialer.Dial(rawURL, headers)
	if err != nil {
		return &TransportError{Op: "connect", Cause: err}
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	t.writeMu.Lock()
	t.conn = conn
	t.writeMu.Unlock()
	return nil
}

func (t *wsTransport) Send(frame []byte, kind FrameKind) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if t.conn == nil {
		return &TransportError{Op: "send", Cause: ErrNotConnected}
	}

	wsKind := websocket.TextMessage
	if kind == BinaryFrame {
		wsKind = websocket.BinaryMessage
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := t.conn.WriteMessage(wsKind, frame); err != nil {
		return &TransportError{Op: "send", Cause: err}
	}
	return nil
}

func (t *wsTransport) Recv() ([]byte, FrameKind, error) {
	t.writeMu.Lock()
	conn := t.conn
	t.writeMu.Unlock()

	if conn == nil {
		return nil, TextFrame, &TransportError{Op: "recv", Cause: ErrNotConnected}
	}

	wsKind, data, err := conn.ReadMessage()
	if err != nil {
		return nil, TextFrame, &TransportError{Op: "recv", Cause: err}
	}

	kind := TextFrame
	if wsKind == websocket.BinaryMessage {
		kind = BinaryFrame
	}
	return data, kind, nil
}

func (t *wsTransport) Close(code int, reason string) error {
	t.writeMu.Lock()
	conn := t.conn
	t.writeMu.Unlock()

	if conn == nil {
		return nil
	}

	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return conn.Close()
}
