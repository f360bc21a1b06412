package signalr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFramesRoundTrip(t *testing.T) {
	a := terminate([]byte(`{"type":6}`))
	b := terminate([]byte(`{"type":3,"invocationId":"Foo_1","result":null}`))

	concat := append(append([]byte{}, a...), b...)
	frames := splitFrames(concat)

	require.Len(t, frames, 2)
	assert.Equal(t, `{"type":6}`, string(frames[0]))
	assert.Equal(t, `{"type":3,"invocationId":"Foo_1","result":null}`, string(frames[1]))
}

func TestSplitFramesIgnoresEmptyChunks(t *testing.T) {
	buf := []byte{recordSeparator, recordSeparator}
	frames := splitFrames(buf)
	assert.Empty(t, frames)
}

func TestSplitMsgpackFramesRoundTrip(t *testing.T) {
	bodyA := []byte{0x01, 0x02, 0x03}
	bodyB := []byte{0x0a, 0x0b}

	buf := bytes.Join([][]byte{withLengthPrefix(bodyA), withLengthPrefix(bodyB)}, nil)

	frames, err := splitMsgpackFrames(buf)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, bodyA, frames[0])
	assert.Equal(t, bodyB, frames[1])
}

func TestSplitMsgpackFramesTruncated(t *testing.T) {
	buf := putVarint(10) // claims 10 bytes follow but none do
	_, err := splitMsgpackFrames(buf)
	assert.Error(t, err)
}
