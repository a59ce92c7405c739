package orchestrator

import (
	"log/slog"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/policy"
)

// Settings are the hot-reloadable knobs of the orchestrator.
type Settings struct {
	OverallTimeout      time.Duration
	DraftingTimeout     time.Duration
	ValidationTimeout   time.Duration
	QATimeout           time.Duration
	ConfidenceThreshold float64
	DraftingRetries     int
}

// DefaultSettings returns the built-in budgets.
func DefaultSettings() Settings {
	return Settings{
		OverallTimeout:      90 * time.Second,
		DraftingTimeout:     60 * time.Second,
		ValidationTimeout:   20 * time.Second,
		QATimeout:           15 * time.Second,
		ConfidenceThreshold: DefaultConfidenceThreshold,
		DraftingRetries:     1,
	}
}

// SettingsFromConfig fills unset values from DefaultSettings.
func SettingsFromConfig(cfg config.OrchestratorConfig) Settings {
	s := DefaultSettings()
	if cfg.OverallTimeout > 0 {
		s.OverallTimeout = cfg.OverallTimeout
	}
	if cfg.DraftingTimeout > 0 {
		s.DraftingTimeout = cfg.DraftingTimeout
	}
	if cfg.ValidationTimeout > 0 {
		s.ValidationTimeout = cfg.ValidationTimeout
	}
	if cfg.QATimeout > 0 {
		s.QATimeout = cfg.QATimeout
	}
	if cfg.ConfidenceThreshold > 0 {
		s.ConfidenceThreshold = cfg.ConfidenceThreshold
	}
	if cfg.DraftingRetries >= 0 {
		s.DraftingRetries = cfg.DraftingRetries
	}
	return s
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAdapter binds a to its role, replacing any earlier adapter for it.
func WithAdapter(a ports.Adapter) Option {
	return func(o *Orchestrator) {
		o.adapters[a.Role()] = a
	}
}

// WithAdapters binds several adapters.
func WithAdapters(adapters ...ports.Adapter) Option {
	return func(o *Orchestrator) {
		for _, a := range adapters {
			o.adapters[a.Role()] = a
		}
	}
}

// WithCache enables the draft cache.
func WithCache(c ports.ResponseCache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithSettings overrides the default budgets.
func WithSettings(s Settings) Option {
	return func(o *Orchestrator) {
		o.settings.Store(&s)
	}
}

// WithTierTable overrides the tier feature table.
func WithTierTable(t *policy.Table) Option {
	return func(o *Orchestrator) {
		o.tiers.Store(t)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}
