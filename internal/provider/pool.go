package provider

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/provider/registry"
)

// Pool holds at most one adapter per role.
type Pool struct {
	adapters map[domain.Role]ports.Adapter
}

// NewPool creates a pool from pre-built adapters. Later adapters for the same
// role replace earlier ones.
func NewPool(adapters ...ports.Adapter) *Pool {
	p := &Pool{adapters: make(map[domain.Role]ports.Adapter, len(adapters))}
	for _, a := range adapters {
		p.adapters[a.Role()] = a
	}
	return p
}

// NewPoolFromConfig creates a backend per provider config using the registered
// factories and binds it to the configured role.
func NewPoolFromConfig(cfgs []config.ProviderConfig, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{adapters: make(map[domain.Role]ports.Adapter, len(cfgs))}
	for _, cfg := range cfgs {
		role := domain.Role(cfg.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("provider %s: unknown role %q", cfg.Name, cfg.Role)
		}
		if existing, ok := p.adapters[role]; ok {
			return nil, fmt.Errorf("provider %s: role %s already served by %s", cfg.Name, role, existing.Name())
		}
		backend, err := registry.CreateFromFactory(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider %s: %w", cfg.Name, err)
		}
		p.adapters[role] = NewAdapter(backend, role,
			WithLogger(logger.With(slog.String("provider", cfg.Name))),
			WithMaxTimeout(cfg.Timeout),
		)
		logger.Info("provider configured",
			slog.String("name", cfg.Name),
			slog.String("type", cfg.Type),
			slog.String("role", string(role)),
		)
	}
	if _, ok := p.adapters[domain.RoleDrafting]; !ok {
		return nil, fmt.Errorf("no provider configured for role %s", domain.RoleDrafting)
	}
	return p, nil
}

// Get returns the adapter for role.
func (p *Pool) Get(role domain.Role) (ports.Adapter, bool) {
	a, ok := p.adapters[role]
	return a, ok
}

// Adapters returns every adapter in role order.
func (p *Pool) Adapters() []ports.Adapter {
	out := make([]ports.Adapter, 0, len(p.adapters))
	for _, role := range domain.Roles {
		if a, ok := p.adapters[role]; ok {
			out = append(out, a)
		}
	}
	return out
}

// Names returns the sorted provider names in the pool.
func (p *Pool) Names() []string {
	names := make([]string, 0, len(p.adapters))
	for _, a := range p.adapters {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}
