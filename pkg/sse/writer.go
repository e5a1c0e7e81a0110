package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ContentType is the media type of an event stream response.
const ContentType = "text/event-stream"

// PingComment is the keep-alive comment written once per poll cycle.
const PingComment = "ping"

var (
	// ErrInvalidEventName is returned for event names that would break framing.
	ErrInvalidEventName = errors.New("sse: event name must be non-empty and single line")

	// ErrEncoding wraps payloads that could not be encoded as JSON. Nothing is
	// written to the transport when it is returned.
	ErrEncoding = errors.New("sse: encoding payload")
)

// Headers returns the response headers every event stream sets. The
// X-Accel-Buffering header stops nginx style proxies from buffering frames.
func Headers() map[string]string {
	return map[string]string{
		"Content-Type":      ContentType,
		"Cache-Control":     "no-cache, no-transform",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
}

// flusher is implemented by buffered transports (bufio.Writer, the fasthttp
// stream writer) that need an explicit push to reach the client.
type flusher interface {
	Flush() error
}

// Writer frames events onto an underlying transport. Every frame ends with
// a blank line; EventSource clients drop frames without it.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer framing onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent writes "event: <name>\ndata: <json>\n\n".
func (w *Writer) WriteEvent(name string, payload any) error {
	if name == "" || strings.ContainsAny(name, "\r\n") {
		return ErrInvalidEventName
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w for %s: %w", ErrEncoding, name, err)
	}

	frame := make([]byte, 0, len(name)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, name...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)

	return w.write(frame)
}

// WriteComment writes ": <text>\n\n". Comments are ignored by clients and
// exist to keep idle connections open.
func (w *Writer) WriteComment(text string) error {
	if strings.ContainsAny(text, "\r\n") {
		return fmt.Errorf("sse: comment must be single line")
	}
	return w.write([]byte(": " + text + "\n\n"))
}

// Ping writes the keep-alive comment.
func (w *Writer) Ping() error {
	return w.WriteComment(PingComment)
}

func (w *Writer) write(frame []byte) error {
	if _, err := w.w.Write(frame); err != nil {
		return err
	}
	if f, ok := w.w.(flusher); ok {
		return f.Flush()
	}
	return nil
}
