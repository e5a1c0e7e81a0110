package stream

import (
	"context"
	"errors"
	"time"
)

// Change is one row a Source observed at or after the watermark.
type Change struct {
	// ID is the row identifier.
	ID string

	// At is the row's version timestamp (updated_at, or created_at for
	// append-only tables). The watermark advances to the largest At seen.
	At time.Time

	// Payload is the JSON-serializable body of the emitted event.
	Payload any
}

// Source returns rows whose version timestamp is at or after since. Secondary
// filters (board, org, chat flag) are bound into the Source when it is built.
type Source interface {
	Changes(ctx context.Context, since time.Time) ([]Change, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, since time.Time) ([]Change, error)

func (f SourceFunc) Changes(ctx context.Context, since time.Time) ([]Change, error) {
	return f(ctx, since)
}

// KeyFunc derives the dedup identity of a Change.
type KeyFunc func(Change) string

// KeyByID identifies a change by row id alone: later mutations of an
// emitted row are suppressed.
func KeyByID(c Change) string {
	return c.ID
}

// KeyByVersion identifies a change by row id and version timestamp, so a
// later mutation of an emitted row is emitted again.
func KeyByVersion(c Change) string {
	return c.ID + ":" + c.At.UTC().Format(time.RFC3339Nano)
}

// ErrSourceUnavailable is returned by Run when the source failed fatally or
// exhausted its retries.
var ErrSourceUnavailable = errors.New("stream source unavailable")

type fatalError struct {
	err error
}

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

// Fatal marks err so the poll loop terminates the stream instead of retrying
// on the next cycle.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe)
}
