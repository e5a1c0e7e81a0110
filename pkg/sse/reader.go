package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// maxLine bounds a single line so a misbehaving server cannot grow the
// buffer without limit.
const maxLine = 1 << 20

// ErrLineTooLong is returned when a line exceeds 1MiB.
var ErrLineTooLong = errors.New("sse: line too long")

// TeeReader parses frames from a source while copying every byte it reads,
// unchanged, to a destination.
//
//	src ──▶ TeeReader.Next ──▶ *Event
//	             │
//	             └──▶ dest (exact copy)
type TeeReader struct {
	src  *bufio.Reader
	dest io.Writer

	// OnComment, when set, receives each comment line without the leading
	// ":" and optional space, e.g. "ping".
	OnComment func(text string)

	typ, id string
	data    []string
	pending bool
}

// NewTeeReader returns a TeeReader over src. Pass io.Discard as dest when
// no copy is needed.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	return &TeeReader{
		src:  bufio.NewReaderSize(src, 64*1024),
		dest: dest,
	}
}

// Next blocks until a frame ends with a blank line and returns it. At end of
// input a trailing unterminated frame is still returned; after that Next
// returns nil, nil.
func (r *TeeReader) Next() (*Event, error) {
	for {
		line, err := r.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		if line != "" || err == nil {
			if ev := r.feed(line); ev != nil {
				return ev, nil
			}
		}

		if errors.Is(err, io.EOF) {
			return r.flush(), nil
		}
	}
}

// readLine reads through the next "\n", copies the raw bytes to dest and
// returns the line without its terminator.
func (r *TeeReader) readLine() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := r.src.ReadSlice('\n')
		if len(chunk) > 0 {
			if _, werr := r.dest.Write(chunk); werr != nil {
				return "", werr
			}
			if sb.Len()+len(chunk) > maxLine {
				return "", ErrLineTooLong
			}
			sb.Write(chunk)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}

		line := strings.TrimSuffix(sb.String(), "\n")
		return strings.TrimSuffix(line, "\r"), err
	}
}

// feed applies one line to the frame under construction and returns the
// frame once a blank line closes it.
func (r *TeeReader) feed(line string) *Event {
	if line == "" {
		return r.flush()
	}

	if text, ok := strings.CutPrefix(line, ":"); ok {
		if r.OnComment != nil {
			r.OnComment(strings.TrimPrefix(text, " "))
		}
		return nil
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		r.typ = value
	case "data":
		r.data = append(r.data, value)
	case "id":
		r.id = value
	default:
		// retry and unknown fields
		return nil
	}
	r.pending = true
	return nil
}

func (r *TeeReader) flush() *Event {
	if !r.pending {
		return nil
	}
	ev := &Event{Type: r.typ, ID: r.id, Data: strings.Join(r.data, "\n")}
	r.typ, r.id, r.data, r.pending = "", "", nil, false
	return ev
}
