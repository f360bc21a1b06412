package signalr

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameMsg is one scripted inbound frame (or error) fed to a fakeTransport.
type frameMsg struct {
	data []byte
	kind FrameKind
	err  error
}

// fakeTransport is a [Transport] double driven entirely by test scripts: it
// never touches the network, following the Dialer-fake-ability pattern
// used in bassosimone-nop's connect_test.go.
type fakeTransport struct {
	recvCh chan frameMsg
	sentCh chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		recvCh: make(chan frameMsg, 16),
		sentCh: make(chan []byte, 16),
	}
}

func (f *fakeTransport) Connect(url string, headers http.Header) error { return nil }

func (f *fakeTransport) Send(frame []byte, kind FrameKind) error {
	f.sentCh <- frame
	return nil
}

func (f *fakeTransport) Recv() ([]byte, FrameKind, error) {
	m, ok := <-f.recvCh
	if !ok {
		return nil, TextFrame, &TransportError{Op: "recv", Cause: ErrConnectionLost}
	}
	return m.data, m.kind, m.err
}

func (f *fakeTransport) Close(code int, reason string) error {
	return nil
}

func (f *fakeTransport) pushHandshakeOK() {
	f.recvCh <- frameMsg{data: terminate([]byte(`{}`)), kind: TextFrame}
}

// negotiationServer starts a test HTTP server answering the SignalR
// negotiate POST with a valid response advertising WebSockets/Text.
func negotiationServer(t *testing.T) (*httptest.Server, string, int) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := NegotiationResult{
			ConnectionID: "conn-1",
			AvailableTransports: []AvailableTransport{
				{Transport: "WebSockets", TransferFormats: []string{"Text", "Binary"}},
			},
			NegotiateVersion: 1,
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return srv, host, port
}

func dialWithFake(t *testing.T, configure func(*ConfigBuilder)) (*Client, *fakeTransport) {
	t.Helper()
	srv, host, port := negotiationServer(t)
	t.Cleanup(srv.Close)

	builder := NewConfigBuilder(host, "hub").Insecure().WithPort(uint16(port))
	if configure != nil {
		configure(builder)
	}
	cfg, err := builder.Build()
	require.NoError(t, err)

	fake := newFakeTransport()
	fake.pushHandshakeOK()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Dial(ctx, cfg, func() Transport { return fake })
	require.NoError(t, err)

	<-fake.sentCh // drain the handshake request frame
	return client, fake
}

type singleEntity struct {
	Text   string `json:"text"`
	Number int    `json:"number"`
}

func TestSingleInvoke(t *testing.T) {
	client, fake := dialWithFake(t, nil)

	type invokeResult struct {
		v   singleEntity
		err error
	}
	resultCh := make(chan invokeResult, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		v, err := Invoke[singleEntity](ctx, client, "SingleEntity")
		resultCh <- invokeResult{v, err}
	}()

	sentFrame := <-fake.sentCh
	var sent InvocationMessage
	require.NoError(t, json.Unmarshal(sentFrame[:len(sentFrame)-1], &sent))
	assert.Equal(t, "SingleEntity_1", sent.InvocationID)
	assert.Equal(t, "SingleEntity", sent.Target)

	completion := CompletionMessage{
		Type:         Completion,
		InvocationID: sent.InvocationID,
		Result:       json.RawMessage(`{"text":"test","number":5}`),
	}
	body, err := json.Marshal(completion)
	require.NoError(t, err)
	fake.recvCh <- frameMsg{data: terminate(body), kind: TextFrame}

	res := <-resultCh
	require.NoError(t, res.err)
	assert.Equal(t, "test", res.v.Text)
	assert.Equal(t, 5, res.v.Number)

	assert.Empty(t, client.conn.registry.byID)
}

func TestStreamingHundredItems(t *testing.T) {
	client, fake := dialWithFake(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := Enumerate[int](ctx, client, "HundredEntities")
	require.NoError(t, err)

	sentFrame := <-fake.sentCh
	var sent StreamInvocationMessage
	require.NoError(t, json.Unmarshal(sentFrame[:len(sentFrame)-1], &sent))
	assert.Equal(t, "HundredEntities_1", sent.InvocationID)

	go func() {
		for i := 0; i < 100; i++ {
			item, _ := json.Marshal(i)
			msg := StreamItemMessage{Type: StreamItem, InvocationID: sent.InvocationID, Item: item}
			body, _ := json.Marshal(msg)
			fake.recvCh <- frameMsg{data: terminate(body), kind: TextFrame}
		}
		completion := CompletionMessage{Type: Completion, InvocationID: sent.InvocationID}
		body, _ := json.Marshal(completion)
		fake.recvCh <- frameMsg{data: terminate(body), kind: TextFrame}
	}()

	for i := 0; i < 100; i++ {
		item, ok, err := stream.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, item)
	}

	_, ok, err := stream.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestInvokeWithTwoArgsMerged(t *testing.T) {
	client, fake := dialWithFake(t, nil)

	type invokeResult struct {
		v   singleEntity
		err error
	}
	resultCh := make(chan invokeResult, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go func() {
		v, err := Invoke[singleEntity](ctx, client, "PushTwoEntities",
			singleEntity{Text: "entity1", Number: 200},
			singleEntity{Text: "entity2", Number: 300})
		resultCh <- invokeResult{v, err}
	}()

	sentFrame := <-fake.sentCh
	var sent InvocationMessage
	require.NoError(t, json.Unmarshal(sentFrame[:len(sentFrame)-1], &sent))
	require.Len(t, sent.Arguments, 2)

	completion := CompletionMessage{
		Type:         Completion,
		InvocationID: sent.InvocationID,
		Result:       json.RawMessage(`{"text":"entity1entity2","number":500}`),
	}
	body, _ := json.Marshal(completion)
	fake.recvCh <- frameMsg{data: terminate(body), kind: TextFrame}

	res := <-resultCh
	require.NoError(t, res.err)
	assert.Equal(t, 500, res.v.Number)
}

func TestFireAndForgetCallbackTriggerEndToEnd(t *testing.T) {
	client, fake := dialWithFake(t, nil)

	received := make(chan string, 1)
	_, err := client.Register("callback1", func(ctx *InvocationContext) {
		var arg string
		require.NoError(t, ctx.Argument(0, &arg))
		received <- arg
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	arg, _ := json.Marshal("callback1")
	msg := InvocationMessage{Type: Invocation, Target: "callback1", Arguments: []json.RawMessage{arg}}
	body, _ := json.Marshal(msg)
	fake.recvCh <- frameMsg{data: terminate(body), kind: TextFrame}

	select {
	case got := <-received:
		assert.Equal(t, "callback1", got)
	case <-ctx.Done():
		t.Fatal("callback was never invoked")
	}

	_ = client.Send(ctx, "TriggerEntityCallback", "callback1")
	sent := <-fake.sentCh
	var sentMsg InvocationMessage
	require.NoError(t, json.Unmarshal(sent[:len(sent)-1], &sentMsg))
	assert.Empty(t, sentMsg.InvocationID)
}

func TestForcedDisconnectWhileStreaming(t *testing.T) {
	client, fake := dialWithFake(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := Enumerate[int](ctx, client, "HundredEntities")
	require.NoError(t, err)

	closeMsg := CloseMessage{Type: Close, Error: "forced", AllowReconnect: false}
	body, _ := json.Marshal(closeMsg)
	fake.recvCh <- frameMsg{data: terminate(body), kind: TextFrame}

	_, ok, err := stream.Next(ctx)
	assert.False(t, ok)
	assert.Error(t, err)

	time.Sleep(50 * time.Millisecond) // let the receive pump observe the close

	_, invokeErr := Invoke[singleEntity](ctx, client, "SingleEntity")
	assert.ErrorIs(t, invokeErr, ErrNotConnected)
}
