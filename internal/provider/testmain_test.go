package provider

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

// stubBackend returns a canned response after an optional delay.
type stubBackend struct {
	name   string
	delay  time.Duration
	resp   *ports.BackendResponse
	err    error
	panics bool
	calls  atomic.Int32
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Call(ctx context.Context, role domain.Role, in *domain.StageInput) (*ports.BackendResponse, error) {
	s.calls.Add(1)
	if s.panics {
		panic("boom")
	}
	if s.delay > 0 {
		// Ignores ctx on purpose: the adapter must not wait for a stuck backend.
		time.Sleep(s.delay)
	}
	return s.resp, s.err
}

type pingBackend struct {
	stubBackend
	pingErr error
}

func (p *pingBackend) Ping(context.Context) error { return p.pingErr }
