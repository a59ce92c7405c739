package progress

import (
	"sync"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// Buffer collects events in memory for the single-shot response.
type Buffer struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Send(ev domain.ProgressEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

// Events returns a copy of everything received.
func (b *Buffer) Events() []domain.ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.ProgressEvent(nil), b.events...)
}

// Final returns the terminal event, if one was received.
func (b *Buffer) Final() (domain.ProgressEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.events); n > 0 && b.events[n-1].Type.Terminal() {
		return b.events[n-1], true
	}
	return domain.ProgressEvent{}, false
}
