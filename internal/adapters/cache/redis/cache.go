// Package redis provides a draft cache shared between gateway instances.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

var tracer = otel.Tracer("github.com/tjfontaine/polyglot-itinerary/internal/adapters/cache/redis")

// Cache stores drafts as JSON. Inserts use SET NX so the first writer for a
// key wins and later writers leave the entry alone.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

var _ ports.ResponseCache = (*Cache)(nil)

// New wraps an existing client. prefix is prepended to every key.
func New(client redis.UniversalClient, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// NewFromConfig connects to the configured server and verifies it answers.
func NewFromConfig(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis cache: addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis cache: failed to connect: %w", err)
	}
	return New(client, cfg.KeyPrefix), nil
}

func (c *Cache) Get(ctx context.Context, key string) (*domain.GeneratedItinerary, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, false, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var it domain.GeneratedItinerary
	if err := json.Unmarshal(raw, &it); err != nil {
		span.RecordError(err)
		return nil, false, fmt.Errorf("decode cached draft: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &it, true, nil
}

func (c *Cache) PutIfAbsent(ctx context.Context, key string, value *domain.GeneratedItinerary, ttl time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "cache.PutIfAbsent",
		trace.WithAttributes(
			attribute.String("cache.key", key),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	raw, err := json.Marshal(value)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("encode draft: %w", err)
	}

	stored, err := c.client.SetNX(ctx, c.prefix+key, raw, ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	span.SetAttributes(attribute.Bool("cache.stored", stored))
	return stored, nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}
