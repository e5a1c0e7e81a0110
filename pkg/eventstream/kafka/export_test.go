package kafka

import "time"

// NewPublisherWithWriter exposes the writer seam to the external tests.
func NewPublisherWithWriter(w messageWriter, timeout time.Duration) *Publisher {
	return newPublisher(w, timeout)
}
