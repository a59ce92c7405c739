package ports

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

// ConfigProvider loads and manages configuration.
// Implementations: file-based with hot-reload (default).
type ConfigProvider interface {
	Load(ctx context.Context) (*config.Config, error)
	Watch(ctx context.Context, onChange func(*config.Config)) error
	Close() error
}

// AuthProvider authenticates bearer tokens.
// Implementations: JWT (default), static development identity.
type AuthProvider interface {
	Authenticate(ctx context.Context, token string) (*AuthContext, error)
}

// AuthContext contains authenticated request context.
type AuthContext struct {
	UserID   string
	Email    string
	Metadata map[string]string
}

// UsageTracker checks and records generation allowance per user. It also resolves
// the caller's subscription tier, which is owned by billing and treated as opaque here.
type UsageTracker interface {
	CheckAndTrackUsage(ctx context.Context, userID string, kind string) (*UsageDecision, error)
}

// UsageDecision is the result of a usage check.
type UsageDecision struct {
	Allowed bool
	Tier    domain.Tier
	Usage   Usage
}

// Usage describes the caller's consumption in the current period.
// Limit is 0 for unlimited tiers.
type Usage struct {
	Current int       `json:"current"`
	Limit   int       `json:"limit"`
	ResetAt time.Time `json:"resetAt"`
}

// ItineraryStore persists generated itineraries.
// Implementations: SQLite (default), in-memory.
type ItineraryStore interface {
	SaveItinerary(ctx context.Context, userID string, itinerary *domain.GeneratedItinerary, params *domain.GenerationRequest, meta *SaveMeta) (string, error)
	GetItinerary(ctx context.Context, id string) (*StoredItinerary, error)
	Close() error
}

// SaveMeta is the orchestration metadata stored next to an itinerary.
type SaveMeta struct {
	QualityScore  *float64
	FallbackUsed  string
	ProvidersUsed []string
}

// StoredItinerary is a persisted itinerary with its owner.
type StoredItinerary struct {
	ID        string
	UserID    string
	Itinerary *domain.GeneratedItinerary
	Params    *domain.GenerationRequest
	CreatedAt time.Time
}

// ThumbnailProvider attaches images to activities. Failures are expected to be
// absorbed by falling back to placeholders.
type ThumbnailProvider interface {
	AddThumbnails(ctx context.Context, plans []domain.DailyPlan, city string) ([]domain.DailyPlan, error)
}

// EventPublisher publishes side-effect events (analytics, XP awards).
// Implementations: direct storage (default), Kafka.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.ActivityEvent) error
	Close() error
}

// ResponseCache stores drafts by request fingerprint. Writes are insert-only.
// Implementations: in-memory, Redis.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*domain.GeneratedItinerary, bool, error)
	// PutIfAbsent stores value under key unless the key already exists.
	// It reports whether this call stored the value.
	PutIfAbsent(ctx context.Context, key string, value *domain.GeneratedItinerary, ttl time.Duration) (bool, error)
}
