// Package runtime provides the core Gateway struct and lifecycle management
// for the itinerary gateway.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/auth"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/auth/apikey"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/cache/memory"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/cache/redis"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/events/direct"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/events/kafka"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/policy/basic"
	sqliteadapter "github.com/tjfontaine/polyglot-itinerary/internal/adapters/storage/sqlite"
	"github.com/tjfontaine/polyglot-itinerary/internal/adapters/thumbnails"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/frontdoor/itinerary"
	"github.com/tjfontaine/polyglot-itinerary/internal/orchestrator"
	"github.com/tjfontaine/polyglot-itinerary/internal/pipeline"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/policy"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider"
	"github.com/tjfontaine/polyglot-itinerary/internal/server"
	"github.com/tjfontaine/polyglot-itinerary/internal/sideeffects"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
	memstore "github.com/tjfontaine/polyglot-itinerary/internal/storage/memory"
	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

// sweepInterval is how often idle rate limiter entries are dropped.
const sweepInterval = time.Minute

// Gateway is the main entry point for running the itinerary gateway.
// It manages configuration, adapters, the orchestrator and the HTTP server
// lifecycle. Gateway can be embedded in larger applications or run standalone.
type Gateway struct {
	// Dependencies (injected via options, otherwise built from config)
	config ports.ConfigProvider
	auth   ports.AuthProvider
	store  storage.Store
	cache  ports.ResponseCache
	events ports.EventPublisher
	thumbs ports.ThumbnailProvider

	// Internal state
	apiKeys        *apikey.Provider
	limiter        *basic.Policy
	orch           *orchestrator.Orchestrator
	handler        *itinerary.Handler
	dispatcher     *sideeffects.Dispatcher
	server         *server.Server
	listener       net.Listener
	tracerShutdown func(context.Context) error
	logger         *slog.Logger

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a new Gateway with the given options. A config provider is
// required; every other dependency defaults to what the config selects.
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.config == nil {
		return nil, errors.New("config provider required (use WithFileConfig or WithConfigProvider)")
	}
	return gw, nil
}

// Start initializes and starts the gateway.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)

	cfg, err := g.config.Load(g.ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, g.logger)
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		g.tracerShutdown = shutdown
	}

	if err := g.init(cfg); err != nil {
		g.cancel()
		if g.dispatcher != nil {
			_ = g.dispatcher.Close(context.Background())
		}
		g.closeAdapters()
		return err
	}

	go g.watchConfig()
	go g.sweepLimiter()

	g.logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.Int("providers", len(cfg.Providers)),
		slog.String("storage", cfg.Storage.Type),
		slog.String("cache", cfg.Cache.Type),
		slog.String("events", cfg.Events.Type))

	return nil
}

// Handler returns the itinerary handler, or nil before Start.
func (g *Gateway) Handler() *itinerary.Handler {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.handler
}

// Addr returns the address the server listens on, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Shutdown gracefully stops the gateway. In-flight requests finish first,
// then queued side effects drain, then adapters close.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
		g.server = nil
	}

	if g.dispatcher != nil {
		if err := g.dispatcher.Close(ctx); err != nil {
			g.logger.Warn("side effects did not drain", slog.String("error", err.Error()))
		}
		g.dispatcher = nil
	}

	g.closeAdapters()

	if g.config != nil {
		if err := g.config.Close(); err != nil {
			g.logger.Error("failed to close config", slog.String("error", err.Error()))
		}
	}

	if g.tracerShutdown != nil {
		if err := g.tracerShutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
		g.tracerShutdown = nil
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

func (g *Gateway) closeAdapters() {
	if g.events != nil {
		if err := g.events.Close(); err != nil {
			g.logger.Error("failed to close events", slog.String("error", err.Error()))
		}
		g.events = nil
	}
	if c, ok := g.cache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			g.logger.Error("failed to close cache", slog.String("error", err.Error()))
		}
	}
	g.cache = nil
	if g.store != nil {
		if err := g.store.Close(); err != nil {
			g.logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
		g.store = nil
	}
}

// watchConfig watches for config changes and reloads.
func (g *Gateway) watchConfig() {
	onChange := func(newCfg *config.Config) {
		g.logger.Info("config changed, reloading")
		if err := g.reload(newCfg); err != nil {
			g.logger.Error("failed to reload", slog.String("error", err.Error()))
		}
	}

	if err := g.config.Watch(g.ctx, onChange); err != nil {
		if !errors.Is(err, context.Canceled) {
			g.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// reload applies the settings that can change without a restart: orchestrator
// timeouts and tier table, upgrade offers, XP award and API keys. Adapters,
// storage and the listen port keep their startup values.
func (g *Gateway) reload(cfg *config.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.orch == nil {
		return errors.New("gateway not started")
	}

	g.orch.UpdateSettings(orchestrator.SettingsFromConfig(cfg.Orchestrator))
	g.orch.UpdateTiers(policy.NewTable(cfg.Orchestrator.Tiers))
	g.handler.UpdateOffers(cfg.Usage.Upgrade, cfg.Events.XPPerTrip)

	if g.apiKeys != nil {
		if err := g.apiKeys.ReloadFromConfig(cfg); err != nil {
			return fmt.Errorf("reload api keys: %w", err)
		}
	}

	g.logger.Info("reload complete",
		slog.Int("tiers", len(cfg.Orchestrator.Tiers)),
		slog.Int("api_keys", len(cfg.Auth.APIKeys)))
	return nil
}

func (g *Gateway) init(cfg *config.Config) error {
	if err := g.initAdapters(cfg); err != nil {
		return err
	}
	if err := g.initOrchestrator(cfg); err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}
	if err := g.initHandler(cfg); err != nil {
		return fmt.Errorf("init handler: %w", err)
	}
	if err := g.startServer(cfg); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// initAdapters builds every dependency not injected through an option.
func (g *Gateway) initAdapters(cfg *config.Config) error {
	if g.store == nil {
		store, err := newStore(g.ctx, cfg)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		g.store = store
	}

	if g.auth == nil {
		authn, keys, err := auth.NewFromConfig(cfg.Auth)
		if err != nil {
			return fmt.Errorf("init auth: %w", err)
		}
		g.auth, g.apiKeys = authn, keys
		if cfg.Auth.Disabled {
			g.logger.Warn("authentication disabled", slog.String("user_id", cfg.Auth.DevUserID))
		}
	}

	if g.cache == nil {
		cache, err := newCache(g.ctx, cfg.Cache)
		if err != nil {
			return fmt.Errorf("init cache: %w", err)
		}
		g.cache = cache
	}

	if g.events == nil {
		events, err := newPublisher(cfg.Events, g.store)
		if err != nil {
			return fmt.Errorf("init events: %w", err)
		}
		g.events = events
	}

	if g.thumbs == nil {
		thumbs, err := thumbnails.NewFromConfig(cfg.Thumbnails, g.logger)
		if err != nil {
			return fmt.Errorf("init thumbnails: %w", err)
		}
		g.thumbs = thumbs
	}
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "", "sqlite":
		store, err := sqliteadapter.NewProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		store := memstore.New(memstore.WithLimits(storage.LimitsFromConfig(cfg.Usage)))
		if err := sqliteadapter.SeedSubscriptions(ctx, store, cfg.Subscriptions); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newCache(ctx context.Context, cfg config.CacheConfig) (ports.ResponseCache, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		cache, err := redis.NewFromConfig(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return cache, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

func newPublisher(cfg config.EventsConfig, ledger storage.ActivityLedger) (ports.EventPublisher, error) {
	switch cfg.Type {
	case "", "direct":
		p, err := direct.NewPublisher(ledger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka":
		p, err := kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown events type %q", cfg.Type)
	}
}

func (g *Gateway) initOrchestrator(cfg *config.Config) error {
	pool, err := provider.NewPoolFromConfig(cfg.Providers, g.logger)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithAdapters(pool.Adapters()...),
		orchestrator.WithSettings(orchestrator.SettingsFromConfig(cfg.Orchestrator)),
		orchestrator.WithTierTable(policy.NewTable(cfg.Orchestrator.Tiers)),
		orchestrator.WithLogger(g.logger),
	}
	if g.cache != nil {
		opts = append(opts, orchestrator.WithCache(g.cache, cfg.Cache.TTL))
	}

	g.orch, err = orchestrator.New(opts...)
	if err != nil {
		return err
	}
	g.logger.Info("orchestrator configured",
		slog.Any("providers", pool.Names()),
		slog.Bool("multi_provider", g.orch.MultiProviderAvailable()))
	return nil
}

func (g *Gateway) initHandler(cfg *config.Config) error {
	g.dispatcher = sideeffects.New(
		sideeffects.WithWorkers(cfg.Events.Workers),
		sideeffects.WithQueueSize(cfg.Events.QueueSize),
		sideeffects.WithTimeout(cfg.Events.Timeout),
		sideeffects.WithLogger(g.logger),
	)

	placeholder := thumbnails.NewPlaceholder(cfg.Thumbnails.PlaceholderURL)
	executor := pipeline.NewExecutor(pipeline.ExecutorConfig{
		Stages: pipeline.PostGenerationStages(g.thumbs, placeholder, g.store, cfg.Thumbnails.Timeout),
		Logger: g.logger,
	})

	var err error
	g.handler, err = itinerary.NewHandler(itinerary.Config{
		Generator:  g.orch,
		Usage:      g.store,
		Store:      g.store,
		Pipeline:   executor,
		Events:     g.events,
		Dispatcher: g.dispatcher,
		Upgrades:   cfg.Usage.Upgrade,
		XPPerTrip:  cfg.Events.XPPerTrip,
		Logger:     g.logger,
	})
	return err
}

// startServer mounts the routes and starts serving in the background.
func (g *Gateway) startServer(cfg *config.Config) error {
	g.server = server.New(server.Config{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Logger:         g.logger,
	})

	var limiter server.RequestLimiter
	if cfg.Server.RequestsPerMinute > 0 {
		g.limiter = basic.NewPolicy(cfg.Server.RequestsPerMinute, cfg.Server.RequestBurst)
		limiter = g.limiter
	}

	r := g.server.Router
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		server.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/api/itineraries", g.handler.Routes(
		server.AuthMiddleware(g.auth),
		server.RateLimitMiddleware(limiter),
	))

	if g.listener == nil {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		g.listener = ln
	}
	return g.server.Serve(g.listener)
}

func (g *Gateway) sweepLimiter() {
	g.mu.RLock()
	limiter, ctx := g.limiter, g.ctx
	g.mu.RUnlock()
	if limiter == nil {
		return
	}

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				g.logger.Debug("rate limiter swept", slog.Int("removed", n))
			}
		}
	}
}
