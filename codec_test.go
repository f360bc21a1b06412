package signalr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodecEncodeDecodeInvocation(t *testing.T) {
	c := jsonCodec{}

	msg := InvocationMessage{
		InvocationID: "Foo_1",
		Target:       "Foo",
		Arguments:    []json.RawMessage{[]byte(`"a"`), []byte(`2`)},
	}

	frame, err := c.encodeInvocation(msg)
	require.NoError(t, err)

	decoded, err := c.decode(frame)
	require.NoError(t, err)

	got, ok := decoded.(InvocationMessage)
	require.True(t, ok)
	assert.Equal(t, msg.InvocationID, got.InvocationID)
	assert.Equal(t, msg.Target, got.Target)
	assert.Len(t, got.Arguments, 2)
}

func TestJSONCodecCompletionBothResultAndErrorIsFatal(t *testing.T) {
	c := jsonCodec{}
	frame := []byte(`{"type":3,"invocationId":"Foo_1","result":{"x":1},"error":"boom"}`)

	_, err := c.decode(frame)
	require.Error(t, err)

	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestJSONCodecUnknownTypeDropped(t *testing.T) {
	c := jsonCodec{}
	frame := []byte(`{"type":99}`)

	decoded, err := c.decode(frame)
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestJSONCodecMalformedFrameIsProtocolError(t *testing.T) {
	c := jsonCodec{}
	_, err := c.decode([]byte(`not json`))
	require.Error(t, err)

	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestHandshakeRequestFraming(t *testing.T) {
	frame := encodeHandshakeRequest(JSONProtocol)
	assert.Equal(t, recordSeparator, frame[len(frame)-1])
	assert.Contains(t, string(frame), `"protocol":"json"`)
	assert.Contains(t, string(frame), `"version":1`)
}

func TestHandshakeResponseDecode(t *testing.T) {
	ok, err := decodeHandshakeResponse([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, ok.Error)

	failed, err := decodeHandshakeResponse([]byte(`{"error":"unsupported protocol"}`))
	require.NoError(t, err)
	assert.Equal(t, "unsupported protocol", failed.Error)
}

func TestMsgpackCodecEncodeDecodeInvocation(t *testing.T) {
	c := msgpackCodec{}

	msg := InvocationMessage{
		InvocationID: "Foo_1",
		Target:       "Foo",
		Arguments:    []json.RawMessage{[]byte(`"a"`)},
	}

	body, err := c.encodeInvocation(msg)
	require.NoError(t, err)

	decoded, err := c.decode(body)
	require.NoError(t, err)

	got, ok := decoded.(InvocationMessage)
	require.True(t, ok)
	assert.Equal(t, msg.Target, got.Target)
	assert.Equal(t, msg.InvocationID, got.InvocationID)
}

func TestMsgpackCodecCompletionResult(t *testing.T) {
	c := msgpackCodec{}

	m := CompletionMessage{InvocationID: "Foo_1", Result: []byte(`{"text":"ok"}`)}
	body, err := c.encodeCompletion(m)
	require.NoError(t, err)

	decoded, err := c.decode(body)
	require.NoError(t, err)

	got, ok := decoded.(CompletionMessage)
	require.True(t, ok)
	assert.Equal(t, "Foo_1", got.InvocationID)
	assert.True(t, got.HasResult())
}

func TestMsgpackCodecCompletionError(t *testing.T) {
	c := msgpackCodec{}

	m := CompletionMessage{InvocationID: "Foo_2", Error: "failed"}
	body, err := c.encodeCompletion(m)
	require.NoError(t, err)

	decoded, err := c.decode(body)
	require.NoError(t, err)

	got, ok := decoded.(CompletionMessage)
	require.True(t, ok)
	assert.Equal(t, "failed", got.Error)
}
