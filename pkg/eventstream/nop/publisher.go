// Package nop provides the publisher used when no event stream is
// configured. It drops events but counts them so the change feed can still
// be observed in tests and debug logs.
package nop

import (
	"context"
	"sync/atomic"

	"github.com/papercomputeco/missioncontrol/pkg/eventstream"
)

type Publisher struct {
	published atomic.Int64
	closed    atomic.Bool
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish discards event.
func (p *Publisher) Publish(_ context.Context, event *eventstream.ChangeEvent) error {
	switch {
	case event == nil:
		return eventstream.ErrNilChangeEvent
	case p.closed.Load():
		return eventstream.ErrPublisherClosed
	}

	p.published.Add(1)
	return nil
}

// Published reports how many events were accepted.
func (p *Publisher) Published() int64 {
	return p.published.Load()
}

func (p *Publisher) Close() error {
	p.closed.Store(true)
	return nil
}
