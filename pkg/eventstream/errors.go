package eventstream

import "errors"

var (
	// ErrNilChangeEvent is returned when a publisher is handed a nil event.
	ErrNilChangeEvent = errors.New("nil change event")

	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
