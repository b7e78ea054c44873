package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"swiftapply/internal/ai"
)

// FrameType enumerates the lifecycle events carried on a generation stream.
type FrameType string

const (
	FrameStageStart    FrameType = "stage_start"
	FrameContentChunk  FrameType = "content_chunk"
	FrameStageComplete FrameType = "stage_complete"
	FrameStageError    FrameType = "stage_error"
	FrameDone          FrameType = "done"
)

// Frame is one self-contained event on the wire. Frames are newline
// delimited JSON objects; within one stream they arrive strictly ordered:
// one stage_start, any number of content_chunk, one of stage_complete or
// stage_error, then one done.
type Frame struct {
	Type        FrameType       `json:"type"`
	Stage       string          `json:"stage,omitempty"`
	Chunk       string          `json:"chunk,omitempty"`
	FullContent string          `json:"fullContent,omitempty"`
	Result      any             `json:"result,omitempty"`
	Tokens      *ai.TokenUsage  `json:"tokens,omitempty"`
	Duration    int64           `json:"duration,omitempty"`
	Error       string          `json:"error,omitempty"`
	Timestamp   int64           `json:"timestamp"`
}

// RawResult re-marshals the Result field so consumers can decode it into
// the stage's concrete type. Result round-trips as generic JSON on the
// consumer side.
func (f Frame) RawResult() (json.RawMessage, error) {
	if f.Result == nil {
		return nil, nil
	}
	return json.Marshal(f.Result)
}

// Writer emits frames to a response stream, flushing after every frame so
// consumers see them as they are produced.
type Writer struct {
	enc     *json.Encoder
	flusher http.Flusher
	now     func() time.Time
}

func NewWriter(w io.Writer) *Writer {
	sw := &Writer{enc: json.NewEncoder(w), now: time.Now}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// Write sends one frame, stamping it if the caller did not.
func (w *Writer) Write(f Frame) error {
	if f.Timestamp == 0 {
		f.Timestamp = w.now().UnixMilli()
	}
	if err := w.enc.Encode(f); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}
