package anthropic

import (
	"errors"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/registry"
)

// BackendType is the type identifier used in configuration.
const BackendType = "anthropic"

// RegisterBackendFactory registers the Anthropic backend.
func RegisterBackendFactory() {
	if registry.IsRegistered(BackendType) {
		return
	}
	registry.RegisterFactory(registry.BackendFactory{
		Type:           BackendType,
		Description:    "Anthropic Messages API (Claude models)",
		Create:         CreateFromConfig,
		ValidateConfig: ValidateConfig,
	})
}

// CreateFromConfig creates a backend from configuration.
func CreateFromConfig(cfg config.ProviderConfig) (ports.Backend, error) {
	opts := []Option{WithModel(cfg.Model), WithMaxTokens(cfg.MaxTokens)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(cfg.Name, cfg.APIKey, opts...), nil
}

// ValidateConfig requires an API key.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return errors.New("api_key is required")
	}
	return nil
}
