package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// Commands understood by the ball sensor daemon. Everything else on either
// link is a JSON document.
const (
	CommandLastBall     = "LAST_BALL"
	CommandPinSetPrefix = "PIN_SET "
)

// Document is a parsed JSON frame. Both protocols declare a discriminator
// field ("type" on the lane link, "event" on the sensor link) but the wire
// layer does not interpret it.
type Document map[string]interface{}

// Type returns the document's "type" field, or "" if absent.
func (d Document) Type() string {
	s, _ := d["type"].(string)
	return s
}

// Event returns the document's "event" field, or "" if absent.
func (d Document) Event() string {
	s, _ := d["event"].(string)
	return s
}

// Marshal serializes v as a single newline-terminated frame.
func Marshal(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return append(b, Delimiter), nil
}

// ParseDocument parses one frame payload (without the delimiter) as a JSON
// document. The payload must be a single JSON object.
func ParseDocument(payload []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse frame %q: %w", payload, err)
	}
	return doc, nil
}

// EncodeLastBall returns the LAST_BALL command frame.
func EncodeLastBall() []byte {
	return []byte(CommandLastBall + string(Delimiter))
}

// EncodePinSet returns the PIN_SET command frame for the given pin indices,
// e.g. "PIN_SET [1,3,5]\n".
func EncodePinSet(pins []int) []byte {
	buf := make([]byte, 0, len(CommandPinSetPrefix)+2+len(pins)*3)
	buf = append(buf, CommandPinSetPrefix...)
	buf = append(buf, '[')
	for i, p := range pins {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendInt(buf, int64(p), 10)
	}
	buf = append(buf, ']', Delimiter)
	return buf
}

// FrameBuffer accumulates raw socket reads and yields complete frames.
// It is owned by a single reader loop and scoped to one connection;
// callers must Reset it on reconnect so a dead connection's partial tail
// is never carried over.
type FrameBuffer struct {
	buf []byte
}

// Append adds bytes read from the socket.
func (b *FrameBuffer) Append(p []byte) {
	b.buf = append(b.buf, p...)
}

// Next extracts the next complete frame, without its delimiter. It returns
// false when no complete frame is buffered; the undelimited tail stays
// buffered for the next read. The returned slice is a copy and remains
// valid after further Append calls.
func (b *FrameBuffer) Next() ([]byte, bool) {
	i := bytes.IndexByte(b.buf, Delimiter)
	if i < 0 {
		return nil, false
	}
	frame := make([]byte, i)
	copy(frame, b.buf[:i])
	b.buf = b.buf[i+1:]
	return frame, true
}

// Len returns the number of buffered bytes not yet extracted.
func (b *FrameBuffer) Len() int {
	return len(b.buf)
}

// Reset discards all buffered bytes.
func (b *FrameBuffer) Reset() {
	b.buf = b.buf[:0]
}
