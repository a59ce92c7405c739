// Package sqlite provides the SQLite storage adapter for the gateway.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage/sqlite"
)

// Provider is the SQLite store configured from app config: usage limits
// applied and configured subscriptions seeded.
type Provider struct {
	*sqlite.Store
}

// NewProvider opens the database at cfg.Storage.SQLite.Path, creating its
// directory if needed.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, error) {
	path := cfg.Storage.SQLite.Path
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if !strings.HasPrefix(path, ":memory:") && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	store, err := sqlite.New(path, sqlite.WithLimits(storage.LimitsFromConfig(cfg.Usage)))
	if err != nil {
		return nil, err
	}

	if err := SeedSubscriptions(ctx, store, cfg.Subscriptions); err != nil {
		store.Close()
		return nil, err
	}

	return &Provider{Store: store}, nil
}

// SeedSubscriptions records the configured tiers. Existing tiers are overwritten.
func SeedSubscriptions(ctx context.Context, store storage.SubscriptionStore, subs []config.SubscriptionConfig) error {
	for _, sub := range subs {
		if sub.UserID == "" {
			return fmt.Errorf("subscription without user_id")
		}
		if err := store.SetTier(ctx, sub.UserID, domain.ParseTier(sub.Tier)); err != nil {
			return fmt.Errorf("seed subscription %s: %w", sub.UserID, err)
		}
	}
	return nil
}

// Ensure Provider implements storage.Store at compile time.
var _ storage.Store = (*Provider)(nil)
