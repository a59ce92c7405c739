// Package registration wires the built-in backend factories.
package registration

import (
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/anthropic"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/fixture"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/openai"
)

// RegisterBuiltins registers built-in backends explicitly.
// This replaces init-based side effects and is intended to be called from
// cmd/itinerary-gateway and tests before building the provider pool.
func RegisterBuiltins() {
	RegisterBackendBuiltins()
}

// RegisterBackendBuiltins registers the vendor and fixture backends.
func RegisterBackendBuiltins() {
	openai.RegisterBackendFactories()
	anthropic.RegisterBackendFactory()
	fixture.RegisterBackendFactory()
}
