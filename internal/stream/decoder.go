package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decoder reassembles frames from a transport that may deliver them split
// across arbitrary read boundaries. Bytes are buffered until a full
// newline-delimited frame is present; every returned frame is a complete,
// independently parsed JSON object.
type Decoder struct {
	buf bytes.Buffer
}

// Feed appends raw bytes to the buffer and returns every frame they
// complete, in order. Partial trailing data stays buffered for the next
// call.
func (d *Decoder) Feed(p []byte) ([]Frame, error) {
	d.buf.Write(p)

	var frames []Frame
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			return frames, nil
		}
		line := bytes.TrimSpace(raw[:idx])
		var frame Frame
		var parseErr error
		if len(line) > 0 {
			parseErr = json.Unmarshal(line, &frame)
		}
		d.buf.Next(idx + 1)
		if len(line) == 0 {
			continue
		}
		if parseErr != nil {
			return frames, fmt.Errorf("malformed frame: %w", parseErr)
		}
		frames = append(frames, frame)
	}
}

// Buffered reports how many bytes of an incomplete frame are pending.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}
