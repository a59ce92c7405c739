// Package memory is an in-process storage.Store for tests and development.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
)

type usageKey struct {
	userID, kind, period string
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu          sync.RWMutex
	itineraries map[string]*ports.StoredItinerary
	tiers       map[string]domain.Tier
	usage       map[usageKey]int
	events      []*domain.ActivityEvent

	limits storage.Limits
	now    func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLimits sets the monthly usage limits.
func WithLimits(l storage.Limits) Option {
	return func(s *Store) { s.limits = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a new in-memory store
func New(opts ...Option) *Store {
	s := &Store{
		itineraries: make(map[string]*ports.StoredItinerary),
		tiers:       make(map[string]domain.Tier),
		usage:       make(map[usageKey]int),
		limits:      storage.Limits{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) SaveItinerary(ctx context.Context, userID string, it *domain.GeneratedItinerary, params *domain.GenerationRequest, meta *ports.SaveMeta) (string, error) {
	if it == nil {
		return "", errors.New("itinerary is required")
	}

	id := uuid.NewString()
	stored := it.Clone()
	stored.ID = id

	rec := &ports.StoredItinerary{
		ID:        id,
		UserID:    userID,
		Itinerary: stored,
		CreatedAt: s.now().UTC(),
	}
	if params != nil {
		p := *params
		p.Interests = append([]string(nil), params.Interests...)
		rec.Params = &p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.itineraries[id] = rec
	return id, nil
}

func (s *Store) GetItinerary(ctx context.Context, id string) (*ports.StoredItinerary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.itineraries[id]
	if !ok {
		return nil, fmt.Errorf("itinerary %s: %w", id, domain.ErrNotFoundSentinel)
	}
	out := *rec
	out.Itinerary = rec.Itinerary.Clone()
	return &out, nil
}

func (s *Store) GetTier(ctx context.Context, userID string) (domain.Tier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if tier, ok := s.tiers[userID]; ok {
		return tier, nil
	}
	return domain.TierFree, nil
}

func (s *Store) SetTier(ctx context.Context, userID string, tier domain.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[userID] = tier
	return nil
}

func (s *Store) CheckAndTrackUsage(ctx context.Context, userID string, kind string) (*ports.UsageDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier, ok := s.tiers[userID]
	if !ok {
		tier = domain.TierFree
	}
	limit := s.limits.Limit(tier)
	period, resetAt := storage.Period(s.now())
	key := usageKey{userID: userID, kind: kind, period: period}

	current := s.usage[key]
	allowed := limit == 0 || current < limit
	if allowed {
		current++
		s.usage[key] = current
	}

	return &ports.UsageDecision{
		Allowed: allowed,
		Tier:    tier,
		Usage: ports.Usage{
			Current: current,
			Limit:   limit,
			ResetAt: resetAt,
		},
	}, nil
}

func (s *Store) RecordEvent(ctx context.Context, event *domain.ActivityEvent) error {
	ev := *event
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now().UTC()
	}
	if ev.Data != nil {
		raw, err := json.Marshal(ev.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		ev.Data = json.RawMessage(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, &ev)
	return nil
}

// ListEvents returns a user's events, newest first.
func (s *Store) ListEvents(ctx context.Context, userID string, limit int) ([]*domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	s.mu.RLock()
	var result []*domain.ActivityEvent
	for _, ev := range s.events {
		if ev.UserID == userID {
			cp := *ev
			result = append(result, &cp)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) Close() error {
	return nil
}
