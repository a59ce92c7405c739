// Package registry provides backend factory registration and lookup.
//
// # Adding a New Backend
//
// Each vendor package exposes an explicit registration function that is wired
// from internal/registration, so nothing depends on init() ordering:
//
//	func RegisterBackendFactory() {
//	    if registry.IsRegistered(BackendType) {
//	        return
//	    }
//	    registry.RegisterFactory(registry.BackendFactory{
//	        Type:           BackendType,
//	        Description:    "Mistral chat completions",
//	        Create:         CreateFromConfig,
//	        ValidateConfig: ValidateConfig,
//	    })
//	}
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// BackendFactory defines how to create a backend of a specific type.
type BackendFactory struct {
	// Type is the identifier used in configuration (e.g. "openai", "anthropic").
	Type string

	// Description provides a human-readable description of the backend.
	Description string

	// Create instantiates a backend from configuration.
	Create func(cfg config.ProviderConfig) (ports.Backend, error)

	// ValidateConfig performs backend-specific configuration validation.
	// Optional: if nil, no additional validation is performed.
	ValidateConfig func(cfg config.ProviderConfig) error
}

var (
	factoryMu   sync.RWMutex
	factoryMap  = make(map[string]BackendFactory)
	factoryList []BackendFactory
)

// RegisterFactory registers a backend factory.
// Panics if a factory with the same type is already registered.
func RegisterFactory(f BackendFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("backend factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("backend factory %q must have a Create function", f.Type))
	}

	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("backend factory %q already registered", f.Type))
	}

	factoryMap[f.Type] = f
	factoryList = append(factoryList, f)
}

// GetFactory returns the factory for a backend type, if registered.
func GetFactory(backendType string) (BackendFactory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factoryMap[backendType]
	return f, ok
}

// ListFactories returns all registered factories sorted by type.
func ListFactories() []BackendFactory {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	result := make([]BackendFactory, len(factoryList))
	copy(result, factoryList)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Type < result[j].Type
	})
	return result
}

// ListBackendTypes returns all registered backend type names.
func ListBackendTypes() []string {
	factories := ListFactories()
	types := make([]string, len(factories))
	for i, f := range factories {
		types[i] = f.Type
	}
	return types
}

// IsRegistered returns true if a backend type is registered.
func IsRegistered(backendType string) bool {
	_, ok := GetFactory(backendType)
	return ok
}

// CreateFromFactory validates cfg and creates a backend using the registered factory.
func CreateFromFactory(cfg config.ProviderConfig) (ports.Backend, error) {
	f, ok := GetFactory(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (registered types: %v)", cfg.Type, ListBackendTypes())
	}

	if f.ValidateConfig != nil {
		if err := f.ValidateConfig(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration for provider type %s: %w", cfg.Type, err)
		}
	}

	return f.Create(cfg)
}

// ClearFactories removes all registered factories (for testing only).
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	factoryMap = make(map[string]BackendFactory)
	factoryList = nil
}
