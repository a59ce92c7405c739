package domain

import "time"

// EventType identifies a progress event.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventPhase1   EventType = "phase1"
	EventPhase2   EventType = "phase2"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Terminal reports whether the event type ends a sequence.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// ProgressEvent is one lifecycle event of a generation attempt.
type ProgressEvent struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Percent int       `json:"percent"`
	Data    any       `json:"data,omitempty"`
}

// Phase1Data is attached to the phase1 event once a draft exists.
type Phase1Data struct {
	Title     string   `json:"title"`
	Days      int      `json:"days"`
	Providers []string `json:"providers"`
	Cached    bool     `json:"cached"`
}

// Phase2Data is attached to the phase2 event after enrichment.
type Phase2Data struct {
	QualityScore *float64 `json:"qualityScore"`
	FallbackUsed string   `json:"fallbackUsed,omitempty"`
}

// ActivityEventType identifies a side-effect event published after a generation.
type ActivityEventType string

const (
	ActivityItineraryGenerated ActivityEventType = "itinerary.generated"
	ActivityXPAwarded          ActivityEventType = "xp.awarded"
)

// ActivityEvent is published to an event bus for decoupled consumers
// (gamification, analytics).
type ActivityEvent struct {
	ID        string            `json:"id"`
	Type      ActivityEventType `json:"type"`
	UserID    string            `json:"user_id"`
	RequestID string            `json:"request_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Data      any               `json:"data,omitempty"`
}

// GeneratedEventData is the data of an itinerary.generated event.
type GeneratedEventData struct {
	ItineraryID   string   `json:"itinerary_id"`
	City          string   `json:"city"`
	Days          int      `json:"days"`
	Tier          Tier     `json:"tier"`
	ProvidersUsed []string `json:"providers_used"`
	FallbackUsed  string   `json:"fallback_used,omitempty"`
	CacheHits     int      `json:"cache_hits"`
	LatencyMs     int64    `json:"latency_ms"`
}

// XPAwardedData is the data of an xp.awarded event.
type XPAwardedData struct {
	Points int    `json:"points"`
	Reason string `json:"reason"`
}
