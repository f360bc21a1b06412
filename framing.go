package signalr

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// recordSeparator is the text-protocol frame delimiter, per the SignalR
// wire protocol.
const recordSeparator byte = 0x1e

// terminate appends the record separator to a single encoded frame, the
// generalized form of the teacher's MessageFormat.write.
func terminate(frame []byte) []byte {
	out := make([]byte, len(frame)+1)
	copy(out, frame)
	out[len(frame)] = recordSeparator
	return out
}

// splitFrames splits a received text-protocol WebSocket message into its
// constituent frames on the record separator, discarding the trailing
// empty split and any empty frames. A single WebSocket message may carry
// more than one SignalR frame, or exactly one.
func splitFrames(buf []byte) [][]byte {
	parts := bytes.Split(buf, []byte{recordSeparator})
	frames := make([][]byte, 0, len(parts))
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		frames = append(frames, p)
	}
	return frames
}

// splitMsgpackFrames splits a received binary WebSocket message into its
// constituent length-prefixed MessagePack bodies (spec §4.2). A single
// WebSocket message may carry more than one frame.
func splitMsgpackFrames(buf []byte) ([][]byte, error) {
	var frames [][]byte
	for len(buf) > 0 {
		n, consumed := binary.Uvarint(buf)
		if consumed <= 0 {
			return nil, fmt.Errorf("invalid msgpack length prefix")
		}
		buf = buf[consumed:]
		if uint64(len(buf)) < n {
			return nil, fmt.Errorf("truncated msgpack frame: want %d bytes, have %d", n, len(buf))
		}
		frames = append(frames, buf[:n])
		buf = buf[n:]
	}
	return frames, nil
}
