package openai

import (
	"errors"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/registry"
)

var (
	errMissingKey     = errors.New("api_key is required")
	errMissingBaseURL = errors.New("base_url is required")
)

// BackendType is the type identifier used in configuration.
const BackendType = "openai"

// BackendTypeCompatible is for servers that speak the OpenAI API.
const BackendTypeCompatible = "openai-compatible"

// RegisterBackendFactories registers both OpenAI backend types.
func RegisterBackendFactories() {
	if !registry.IsRegistered(BackendType) {
		registry.RegisterFactory(registry.BackendFactory{
			Type:           BackendType,
			Description:    "OpenAI Chat Completions",
			Create:         CreateFromConfig,
			ValidateConfig: ValidateConfig,
		})
	}
	if !registry.IsRegistered(BackendTypeCompatible) {
		registry.RegisterFactory(registry.BackendFactory{
			Type:           BackendTypeCompatible,
			Description:    "OpenAI-compatible Chat Completions (local or hosted)",
			Create:         CreateFromConfig,
			ValidateConfig: ValidateCompatibleConfig,
		})
	}
}

// CreateFromConfig creates a backend from configuration.
func CreateFromConfig(cfg config.ProviderConfig) (ports.Backend, error) {
	opts := []Option{WithModel(cfg.Model), WithMaxTokens(cfg.MaxTokens)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return New(cfg.Name, cfg.APIKey, opts...), nil
}

// ValidateConfig requires an API key for the hosted API.
func ValidateConfig(cfg config.ProviderConfig) error {
	if cfg.APIKey == "" {
		return errMissingKey
	}
	return nil
}

// ValidateCompatibleConfig requires a base URL; the key is optional since
// some local servers don't check it.
func ValidateCompatibleConfig(cfg config.ProviderConfig) error {
	if cfg.BaseURL == "" {
		return errMissingBaseURL
	}
	return nil
}
