// Package direct provides an event publisher that writes to the activity ledger.
package direct

import (
	"context"
	"fmt"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
)

// Publisher implements ports.EventPublisher by writing directly to storage.
// This is the default implementation for single-instance deployments.
type Publisher struct {
	ledger storage.ActivityLedger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a new direct event publisher.
func NewPublisher(ledger storage.ActivityLedger) (*Publisher, error) {
	if ledger == nil {
		return nil, fmt.Errorf("activity ledger required")
	}
	return &Publisher{ledger: ledger}, nil
}

// Publish records the event in the ledger.
func (p *Publisher) Publish(ctx context.Context, event *domain.ActivityEvent) error {
	if event == nil || event.UserID == "" {
		return fmt.Errorf("event without user")
	}
	return p.ledger.RecordEvent(ctx, event)
}

// Close is a no-op for direct publisher.
func (p *Publisher) Close() error {
	return nil
}
