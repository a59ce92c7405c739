package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

const pingTimeout = 5 * time.Second

// AdapterHealth describes one role's adapter.
type AdapterHealth struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider,omitempty"`
	Reachable  bool   `json:"reachable"`
	LatencyMs  int64  `json:"latencyMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

// HealthStatus summarizes which adapters are configured and reachable.
type HealthStatus struct {
	Status          string                   `json:"status"`
	MultiLLMEnabled bool                     `json:"multiLLMEnabled"`
	Adapters        map[string]AdapterHealth `json:"adapters"`
}

// HealthStatus pings every configured adapter concurrently. Status is "ok"
// when the drafting adapter is reachable; enrichment outages only degrade.
func (o *Orchestrator) HealthStatus(ctx context.Context) HealthStatus {
	status := HealthStatus{
		MultiLLMEnabled: o.MultiProviderAvailable(),
		Adapters:        make(map[string]AdapterHealth, len(domain.Roles)),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, role := range domain.Roles {
		a := o.adapters[role]
		if a == nil {
			continue
		}
		wg.Add(1)
		go func(role domain.Role) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()

			start := time.Now()
			err := a.Ping(pctx)
			h := AdapterHealth{
				Configured: true,
				Provider:   a.Name(),
				Reachable:  err == nil,
				LatencyMs:  time.Since(start).Milliseconds(),
			}
			if err != nil {
				h.Error = "unreachable"
				o.logger.WarnContext(ctx, "adapter health check failed",
					slog.String("role", string(role)),
					slog.String("provider", a.Name()),
					slog.String("error", err.Error()),
				)
			}
			mu.Lock()
			status.Adapters[string(role)] = h
			mu.Unlock()
		}(role)
	}
	wg.Wait()

	for _, role := range domain.Roles {
		if _, ok := status.Adapters[string(role)]; !ok {
			status.Adapters[string(role)] = AdapterHealth{}
		}
	}

	status.Status = "error"
	if status.Adapters[string(domain.RoleDrafting)].Reachable {
		status.Status = "ok"
	}
	return status
}
