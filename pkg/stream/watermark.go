package stream

import "time"

// Watermark is the most recent event time a stream has already considered.
// It only moves forward.
type Watermark struct {
	t time.Time
}

// NewWatermark starts a watermark at t.
func NewWatermark(t time.Time) *Watermark {
	return &Watermark{t: t}
}

// Time returns the current position.
func (w *Watermark) Time() time.Time {
	return w.t
}

// Advance moves the watermark to t when t is later and reports whether it
// moved.
func (w *Watermark) Advance(t time.Time) bool {
	if !t.After(w.t) {
		return false
	}
	w.t = t
	return true
}
