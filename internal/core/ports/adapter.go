package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// Backend is one vendor integration. Call returns a normalized payload for the
// role it was constructed for, or an error the adapter will classify.
type Backend interface {
	// Name returns the configured provider name.
	Name() string
	// Call performs one vendor request. It must not retry or modify the input.
	Call(ctx context.Context, role domain.Role, in *domain.StageInput) (*BackendResponse, error)
}

// BackendResponse is a successful vendor call.
type BackendResponse struct {
	Payload          domain.Payload
	PromptTokens     int
	CompletionTokens int
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Adapter is the uniform contract the orchestrator uses for one role.
type Adapter interface {
	Name() string
	Role() domain.Role
	// Invoke never returns an error; failures are encoded in the result.
	Invoke(ctx context.Context, in *domain.StageInput, timeout time.Duration) domain.ProviderResult
	// Ping checks reachability. Adapters whose backend cannot ping return nil.
	Ping(ctx context.Context) error
}
