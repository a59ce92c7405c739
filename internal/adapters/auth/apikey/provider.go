// Package apikey provides API key-based authentication for server-to-server callers.
package apikey

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// Provider implements ports.AuthProvider by looking up the SHA-256 hash of
// the presented key. Plain keys are never stored.
type Provider struct {
	mu   sync.RWMutex
	keys map[string]config.APIKeyConfig // keyHash -> key
}

var _ ports.AuthProvider = (*Provider)(nil)

// NewProvider creates a new API key auth provider.
func NewProvider(keys []config.APIKeyConfig) (*Provider, error) {
	p := &Provider{}
	if err := p.load(keys); err != nil {
		return nil, err
	}
	return p, nil
}

// Authenticate validates an API key and returns the user it belongs to.
func (p *Provider) Authenticate(ctx context.Context, token string) (*ports.AuthContext, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	key, ok := p.keys[HashAPIKey(token)]
	if !ok {
		return nil, fmt.Errorf("invalid API key")
	}

	return &ports.AuthContext{
		UserID: key.UserID,
		Metadata: map[string]string{
			"auth_method":     "api_key",
			"key_description": key.Description,
		},
	}, nil
}

// Len returns the number of configured keys.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.keys)
}

func (p *Provider) load(keys []config.APIKeyConfig) error {
	m := make(map[string]config.APIKeyConfig, len(keys))
	for _, k := range keys {
		if k.KeyHash == "" || k.UserID == "" {
			return fmt.Errorf("api key %q: key_hash and user_id are required", k.Description)
		}
		m[k.KeyHash] = k
	}

	p.mu.Lock()
	p.keys = m
	p.mu.Unlock()
	return nil
}

// ReloadFromConfig replaces the key set.
// This is called by the gateway when config changes.
func (p *Provider) ReloadFromConfig(cfg *config.Config) error {
	return p.load(cfg.Auth.APIKeys)
}

// HashAPIKey creates a SHA-256 hash of an API key for storage.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
