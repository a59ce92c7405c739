package thumbnails

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/safehttp"
	"github.com/tjfontaine/polyglot-itinerary/internal/telemetry"
)

const (
	DefaultBaseURL     = "https://api.unsplash.com"
	DefaultConcurrency = 4
)

// ErrUnauthorized means the access key was rejected; no lookup can succeed.
var ErrUnauthorized = errors.New("unsplash: access key rejected")

// Unsplash looks up one photo per activity. Lookups are throttled by a token
// bucket shared across requests. An activity whose lookup fails gets a
// placeholder; only a rejected key or a canceled context fails the call.
type Unsplash struct {
	accessKey   string
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	placeholder *Placeholder
	concurrency int
	logger      *slog.Logger
}

var _ ports.ThumbnailProvider = (*Unsplash)(nil)

// Option configures an Unsplash provider.
type Option func(*Unsplash)

// WithHTTPClient replaces the default SSRF-safe client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Unsplash) { u.client = c }
}

// WithBaseURL overrides the API root.
func WithBaseURL(base string) Option {
	return func(u *Unsplash) {
		if base != "" {
			u.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithRate sets lookups per second (burst 1). Zero or negative disables throttling.
func WithRate(perSecond float64) Option {
	return func(u *Unsplash) {
		if perSecond <= 0 {
			u.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		u.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithPlaceholder sets the fallback for activities without a photo.
func WithPlaceholder(p *Placeholder) Option {
	return func(u *Unsplash) { u.placeholder = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Unsplash) { u.logger = l }
}

// NewUnsplash creates a provider.
func NewUnsplash(accessKey string, opts ...Option) (*Unsplash, error) {
	if accessKey == "" {
		return nil, fmt.Errorf("unsplash: access key required")
	}
	u := &Unsplash{
		accessKey:   accessKey,
		baseURL:     DefaultBaseURL,
		client:      safehttp.NewClient(5 * time.Second),
		limiter:     rate.NewLimiter(5, 1),
		placeholder: NewPlaceholder(""),
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

// NewFromConfig returns the configured provider: Unsplash when selected and
// keyed, otherwise placeholders.
func NewFromConfig(cfg config.ThumbnailsConfig, logger *slog.Logger) (ports.ThumbnailProvider, error) {
	placeholder := NewPlaceholder(cfg.PlaceholderURL)
	switch cfg.Provider {
	case "", "placeholder":
		return placeholder, nil
	case "unsplash":
		return NewUnsplash(cfg.AccessKey,
			WithBaseURL(cfg.BaseURL),
			WithRate(cfg.RatePerSecond),
			WithPlaceholder(placeholder),
			WithHTTPClient(safehttp.NewClient(cfg.Timeout)),
			WithLogger(logger),
		)
	default:
		return nil, fmt.Errorf("unknown thumbnail provider %q", cfg.Provider)
	}
}

type searchResponse struct {
	Results []struct {
		URLs struct {
			Small   string `json:"small"`
			Regular string `json:"regular"`
		} `json:"urls"`
	} `json:"results"`
}

func (u *Unsplash) AddThumbnails(ctx context.Context, plans []domain.DailyPlan, city string) ([]domain.DailyPlan, error) {
	out := clonePlans(plans)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i := range out {
		for j := range out[i].Activities {
			a := &out[i].Activities[j]
			if a.ImageURL != "" {
				continue
			}
			g.Go(func() error {
				img, err := u.lookup(gctx, a.Name+" "+city)
				switch {
				case err == nil && img != "":
					a.ImageURL = img
					telemetry.ThumbnailsTotal.WithLabelValues("found").Inc()
					return nil
				case errors.Is(err, ErrUnauthorized), gctx.Err() != nil:
					if err == nil {
						err = gctx.Err()
					}
					return err
				case err != nil:
					telemetry.ThumbnailsTotal.WithLabelValues("error").Inc()
					u.logger.Debug("thumbnail lookup failed",
						slog.String("activity", a.Name),
						slog.String("error", err.Error()),
					)
				}
				a.ImageURL = u.placeholder.URL(a.Name)
				telemetry.ThumbnailsTotal.WithLabelValues("placeholder").Inc()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (u *Unsplash) lookup(ctx context.Context, query string) (string, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", "1")
	q.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/search/photos?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Client-ID "+u.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("unsplash: status %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&sr); err != nil {
		return "", fmt.Errorf("unsplash: decode: %w", err)
	}
	if len(sr.Results) == 0 {
		return "", nil
	}
	if small := sr.Results[0].URLs.Small; small != "" {
		return small, nil
	}
	return sr.Results[0].URLs.Regular, nil
}
