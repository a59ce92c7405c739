// Package sqlite is the SQLite implementation of storage.Store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
	"github.com/tjfontaine/polyglot-itinerary/internal/storage"
)

// Store persists itineraries, subscriptions, usage counters and the activity ledger.
type Store struct {
	db     *sqlx.DB
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

// WithClock overrides time.Now, used for usage periods and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (or creates) the database at dbPath.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases intact and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, limits: storage.Limits{}, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS itineraries (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			city TEXT NOT NULL,
			days INTEGER NOT NULL,
			itinerary TEXT NOT NULL,
			params TEXT,
			quality_score REAL,
			fallback_used TEXT,
			providers_used TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
			user_id TEXT PRIMARY KEY,
			tier TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS usage_counters (
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			period TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, kind, period)
		)`,
		`CREATE TABLE IF NOT EXISTS activity_events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			user_id TEXT NOT NULL,
			request_id TEXT,
			data TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_itineraries_user ON itineraries(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_events_user ON activity_events(user_id, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

type itineraryRow struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	City          string          `db:"city"`
	Days          int             `db:"days"`
	Itinerary     string          `db:"itinerary"`
	Params        sql.NullString  `db:"params"`
	QualityScore  sql.NullFloat64 `db:"quality_score"`
	FallbackUsed  sql.NullString  `db:"fallback_used"`
	ProvidersUsed sql.NullString  `db:"providers_used"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (s *Store) SaveItinerary(ctx context.Context, userID string, it *domain.GeneratedItinerary, params *domain.GenerationRequest, meta *ports.SaveMeta) (string, error) {
	if it == nil {
		return "", errors.New("itinerary is required")
	}

	id := uuid.NewString()
	stored := *it
	stored.ID = id

	body, err := json.Marshal(&stored)
	if err != nil {
		return "", fmt.Errorf("failed to marshal itinerary: %w", err)
	}

	row := itineraryRow{
		ID:        id,
		UserID:    userID,
		City:      it.City,
		Days:      it.Days,
		Itinerary: string(body),
		CreatedAt: s.now().UTC(),
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("failed to marshal params: %w", err)
		}
		row.Params = sql.NullString{String: string(raw), Valid: true}
	}
	if meta != nil {
		if meta.QualityScore != nil {
			row.QualityScore = sql.NullFloat64{Float64: *meta.QualityScore, Valid: true}
		}
		row.FallbackUsed = sql.NullString{String: meta.FallbackUsed, Valid: meta.FallbackUsed != ""}
		providers, err := json.Marshal(meta.ProvidersUsed)
		if err != nil {
			return "", fmt.Errorf("failed to marshal providers: %w", err)
		}
		row.ProvidersUsed = sql.NullString{String: string(providers), Valid: true}
	}

	query := `INSERT INTO itineraries (id, user_id, city, days, itinerary, params, quality_score, fallback_used, providers_used, created_at)
	          VALUES (:id, :user_id, :city, :days, :itinerary, :params, :quality_score, :fallback_used, :providers_used, :created_at)`

	_, err = s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return "", fmt.Errorf("failed to save itinerary: %w", err)
	}

	return id, nil
}

func (s *Store) GetItinerary(ctx context.Context, id string) (*ports.StoredItinerary, error) {
	var row itineraryRow
	query := `SELECT id, user_id, itinerary, params, quality_score, fallback_used, providers_used, created_at
	          FROM itineraries WHERE id = ?`

	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("itinerary %s: %w", id, domain.ErrNotFoundSentinel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	out := &ports.StoredItinerary{
		ID:        row.ID,
		UserID:    row.UserID,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Itinerary), &out.Itinerary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal itinerary: %w", err)
	}
	if row.Params.Valid {
		if err := json.Unmarshal([]byte(row.Params.String), &out.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}

	return out, nil
}

func (s *Store) GetTier(ctx context.Context, userID string) (domain.Tier, error) {
	var tier string
	err := s.db.GetContext(ctx, &tier, `SELECT tier FROM subscriptions WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TierFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get tier: %w", err)
	}
	return domain.ParseTier(tier), nil
}

func (s *Store) SetTier(ctx context.Context, userID string, tier domain.Tier) error {
	query := `INSERT INTO subscriptions (user_id, tier, updated_at) VALUES (?, ?, ?)
	          ON CONFLICT(user_id) DO UPDATE SET tier = excluded.tier, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, query, userID, string(tier), s.now().UTC()); err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	return nil
}

// CheckAndTrackUsage charges one unit of kind to userID if the tier's monthly
// limit allows it. The check and increment happen in a single statement.
func (s *Store) CheckAndTrackUsage(ctx context.Context, userID string, kind string) (*ports.UsageDecision, error) {
	tier, err := s.GetTier(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := s.limits.Limit(tier)
	period, resetAt := storage.Period(s.now())

	query := `INSERT INTO usage_counters (user_id, kind, period, count) VALUES (?, ?, ?, 1)
	          ON CONFLICT(user_id, kind, period) DO UPDATE SET count = count + 1
	          WHERE ? = 0 OR count < ?`

	res, err := s.db.ExecContext(ctx, query, userID, kind, period, limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to track usage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to track usage: %w", err)
	}

	var current int
	err = s.db.GetContext(ctx, &current,
		`SELECT count FROM usage_counters WHERE user_id = ? AND kind = ? AND period = ?`,
		userID, kind, period)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}

	return &ports.UsageDecision{
		Allowed: affected > 0,
		Tier:    tier,
		Usage: ports.Usage{
			Current: current,
			Limit:   limit,
			ResetAt: resetAt,
		},
	}, nil
}

type eventRow struct {
	ID        string         `db:"id"`
	Type      string         `db:"type"`
	UserID    string         `db:"user_id"`
	RequestID sql.NullString `db:"request_id"`
	Data      sql.NullString `db:"data"`
	CreatedAt time.Time      `db:"created_at"`
}

func (s *Store) RecordEvent(ctx context.Context, event *domain.ActivityEvent) error {
	row := eventRow{
		ID:        event.ID,
		Type:      string(event.Type),
		UserID:    event.UserID,
		RequestID: sql.NullString{String: event.RequestID, Valid: event.RequestID != ""},
		CreatedAt: event.Timestamp.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		row.CreatedAt = s.now().UTC()
	}
	if event.Data != nil {
		raw, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		row.Data = sql.NullString{String: string(raw), Valid: true}
	}

	query := `INSERT INTO activity_events (id, type, user_id, request_id, data, created_at)
	          VALUES (:id, :type, :user_id, :request_id, :data, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// ListEvents returns a user's events, newest first. Data is decoded as raw JSON.
func (s *Store) ListEvents(ctx context.Context, userID string, limit int) ([]*domain.ActivityEvent, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	var rows []eventRow
	query := `SELECT id, type, user_id, request_id, data, created_at
	          FROM activity_events WHERE user_id = ?
	          ORDER BY created_at DESC, id DESC
	          LIMIT ?`
	if err := s.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*domain.ActivityEvent, 0, len(rows))
	for _, r := range rows {
		ev := &domain.ActivityEvent{
			ID:        r.ID,
			Type:      domain.ActivityEventType(r.Type),
			UserID:    r.UserID,
			RequestID: r.RequestID.String,
			Timestamp: r.CreatedAt,
		}
		if r.Data.Valid {
			ev.Data = json.RawMessage(r.Data.String)
		}
		events = append(events, ev)
	}
	return events, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
