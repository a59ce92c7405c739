// Package gateway provides the public API for embedding the itinerary gateway.
// This is the stable API for external consumers.
package gateway

import (
	"github.com/tjfontaine/polyglot-itinerary/internal/registration"
	"github.com/tjfontaine/polyglot-itinerary/internal/runtime"
)

// Gateway is the main entry point for running the itinerary gateway.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gateway.RegisterBuiltins()
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithLogger(logger),
//	)
var New = runtime.New

// RegisterBuiltins registers the OpenAI, Anthropic and fixture backends.
// Call it once before Start.
var RegisterBuiltins = registration.RegisterBuiltins

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Authentication
	WithAuthProvider = runtime.WithAuthProvider

	// Storage and cache
	WithStore = runtime.WithStore
	WithCache = runtime.WithCache

	// Events
	WithEventPublisher = runtime.WithEventPublisher
	WithKafkaEvents    = runtime.WithKafkaEvents

	// Advanced options
	WithThumbnailProvider = runtime.WithThumbnailProvider
	WithLogger            = runtime.WithLogger
	WithListener          = runtime.WithListener
)
