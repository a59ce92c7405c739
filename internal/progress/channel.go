// Package progress delivers the ordered lifecycle events of one generation
// attempt to a sink, either buffered or streamed.
package progress

import (
	"context"
	"errors"
	"sync"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

var (
	// ErrClosed is returned for events after the terminal event.
	ErrClosed = errors.New("progress: channel closed")
	// ErrCanceled is returned for events after the attempt's context ended.
	ErrCanceled = errors.New("progress: attempt canceled")
)

// maxNonTerminal keeps 100 reserved for complete.
const maxNonTerminal = 99

// Sink receives events in order. A Sink error ends emission for the attempt.
type Sink interface {
	Send(ev domain.ProgressEvent) error
}

// Channel enforces the event ordering contract over a Sink:
// exactly one start first, at most one terminal event last, percent never
// decreasing, and nothing delivered once the context is done.
//
// A nil *Channel discards everything, so callers that don't observe
// progress can pass nil.
type Channel struct {
	ctx  context.Context
	sink Sink

	mu      sync.Mutex
	started bool
	closed  bool
	percent int
	err     error
}

// New creates a channel bound to ctx.
func New(ctx context.Context, sink Sink) *Channel {
	return &Channel{ctx: ctx, sink: sink}
}

// Start emits the start event. Repeated calls are no-ops.
func (c *Channel) Start(message string) error {
	return c.Emit(domain.ProgressEvent{Type: domain.EventStart, Message: message})
}

// Progress emits a progress event.
func (c *Channel) Progress(message string, percent int) error {
	return c.Emit(domain.ProgressEvent{Type: domain.EventProgress, Message: message, Percent: percent})
}

// Phase1 reports that a draft exists.
func (c *Channel) Phase1(message string, percent int, data domain.Phase1Data) error {
	return c.Emit(domain.ProgressEvent{Type: domain.EventPhase1, Message: message, Percent: percent, Data: data})
}

// Phase2 reports that enrichment finished.
func (c *Channel) Phase2(message string, percent int, data domain.Phase2Data) error {
	return c.Emit(domain.ProgressEvent{Type: domain.EventPhase2, Message: message, Percent: percent, Data: data})
}

// Complete emits the terminal success event at 100 percent.
func (c *Channel) Complete(data any) error {
	return c.Emit(domain.ProgressEvent{Type: domain.EventComplete, Message: "Itinerary ready", Percent: 100, Data: data})
}

// Fail emits the terminal error event. message must be safe to show to callers.
func (c *Channel) Fail(message string) error {
	return c.Emit(domain.ProgressEvent{Type: domain.EventError, Message: message})
}

// Emit delivers ev subject to the ordering contract. A start event is
// synthesized when the first event is not one.
func (c *Channel) Emit(ev domain.ProgressEvent) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	if c.closed {
		return ErrClosed
	}
	if c.ctx != nil && c.ctx.Err() != nil {
		return ErrCanceled
	}

	if ev.Type == domain.EventStart {
		if c.started {
			return nil
		}
		ev.Percent = 0
	} else if !c.started {
		if err := c.send(domain.ProgressEvent{Type: domain.EventStart, Message: "Starting"}); err != nil {
			return err
		}
	}
	c.started = true

	switch ev.Type {
	case domain.EventComplete:
		ev.Percent = 100
	case domain.EventError:
		ev.Percent = c.percent
	default:
		ev.Percent = min(max(ev.Percent, c.percent), maxNonTerminal)
	}
	if ev.Type.Terminal() {
		c.closed = true
	}
	c.percent = ev.Percent
	return c.send(ev)
}

func (c *Channel) send(ev domain.ProgressEvent) error {
	if err := c.sink.Send(ev); err != nil {
		c.err = err
		return err
	}
	return nil
}

// Closed reports whether a terminal event was delivered.
func (c *Channel) Closed() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Err returns the sink error that ended emission, if any.
func (c *Channel) Err() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
