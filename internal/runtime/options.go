package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/config/file"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/events/kafka"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig uses file-based configuration with hot-reload (default).
// The path should point to a config.yaml file that will be watched for changes.
// Set the logger first if the provider should share it.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		provider, err := file.NewProvider(path, file.WithLogger(g.logger))
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.config = provider
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
// For advanced use cases where you need full control over config loading.
func WithConfigProvider(provider ports.ConfigProvider) Option {
	return func(g *Gateway) error {
		g.config = provider
		return nil
	}
}

// WithAuthProvider sets a custom auth provider instead of the configured
// JWT and API key chain.
func WithAuthProvider(provider ports.AuthProvider) Option {
	return func(g *Gateway) error {
		g.auth = provider
		return nil
	}
}

// WithStore sets the storage used for itineraries, usage and subscriptions.
// The gateway closes it on shutdown.
func WithStore(store storage.Store) Option {
	return func(g *Gateway) error {
		if store == nil {
			return errors.New("store cannot be nil")
		}
		g.store = store
		return nil
	}
}

// WithCache sets the draft cache.
func WithCache(cache ports.ResponseCache) Option {
	return func(g *Gateway) error {
		g.cache = cache
		return nil
	}
}

// WithEventPublisher sets a custom event publisher.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(g *Gateway) error {
		g.events = publisher
		return nil
	}
}

// WithKafkaEvents publishes side-effect events to Kafka regardless of the
// configured events type.
func WithKafkaEvents(brokers []string, topic string) Option {
	return func(g *Gateway) error {
		publisher, err := kafka.NewPublisher(config.KafkaConfig{Brokers: brokers, Topic: topic})
		if err != nil {
			return fmt.Errorf("create kafka publisher: %w", err)
		}
		g.events = publisher
		return nil
	}
}

// WithThumbnailProvider sets the thumbnail provider.
func WithThumbnailProvider(provider ports.ThumbnailProvider) Option {
	return func(g *Gateway) error {
		g.thumbs = provider
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		g.logger = logger
		return nil
	}
}

// WithListener serves on ln instead of listening on the configured port.
func WithListener(ln net.Listener) Option {
	return func(g *Gateway) error {
		g.listener = ln
		return nil
	}
}
