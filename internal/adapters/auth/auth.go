// Package auth builds the gateway's authenticator from config.
package auth

import (
	"context"
	"errors"

	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/auth/apikey"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/auth/jwt"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// ErrUnauthenticated is returned when no provider accepted the credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// Chain tries each provider in order and returns the first success.
type Chain []ports.AuthProvider

func (c Chain) Authenticate(ctx context.Context, token string) (*ports.AuthContext, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	for _, p := range c {
		if auth, err := p.Authenticate(ctx, token); err == nil {
			return auth, nil
		}
	}
	return nil, ErrUnauthenticated
}

// Static accepts every request as one user. Development only.
type Static struct {
	UserID string
}

func (s Static) Authenticate(ctx context.Context, token string) (*ports.AuthContext, error) {
	return &ports.AuthContext{
		UserID:   s.UserID,
		Metadata: map[string]string{"auth_method": "disabled"},
	}, nil
}

// NewFromConfig returns Static when auth is disabled, otherwise a chain of the
// JWT provider (if a secret is set) and the API key provider (if keys are set).
// The returned API key provider is nil when no keys are configured.
func NewFromConfig(cfg config.AuthConfig) (ports.AuthProvider, *apikey.Provider, error) {
	if cfg.Disabled {
		return Static{UserID: cfg.DevUserID}, nil, nil
	}

	var chain Chain
	if cfg.JWTSecret != "" {
		p, err := jwt.NewProvider(cfg.JWTSecret, cfg.Issuer)
		if err != nil {
			return nil, nil, err
		}
		chain = append(chain, p)
	}

	keys, err := apikey.NewProvider(cfg.APIKeys)
	if err != nil {
		return nil, nil, err
	}
	chain = append(chain, keys)

	if cfg.JWTSecret == "" && len(cfg.APIKeys) == 0 {
		return nil, nil, errors.New("auth: set jwt_secret, api_keys, or disabled")
	}
	return chain, keys, nil
}

var (
	_ ports.AuthProvider = Chain(nil)
	_ ports.AuthProvider = Static{}
)
