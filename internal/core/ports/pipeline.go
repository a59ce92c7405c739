// Package ports defines the core interfaces for the itinerary service.
// This file contains the post-generation stage interfaces.
package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// StageAction is the result action from a pipeline stage.
type StageAction string

const (
	// ActionAllow continues with the current itinerary.
	ActionAllow StageAction = "allow"
	// ActionDeny stops the pipeline.
	ActionDeny StageAction = "deny"
	// ActionMutate continues with the itinerary returned by the stage.
	ActionMutate StageAction = "mutate"
)

// StageInput is the data sent to a pipeline stage.
type StageInput struct {
	// UserID is the authenticated caller.
	UserID string
	// Request is the generation request (always present).
	Request *domain.GenerationRequest
	// Outcome is the orchestrator result the itinerary came from.
	Outcome *domain.GenerationOutcome
	// Itinerary is the current itinerary, possibly changed by earlier stages.
	Itinerary *domain.GeneratedItinerary
	// Metadata contains contextual information about the request.
	Metadata map[string]any
}

// StageOutput is returned from a pipeline stage.
type StageOutput struct {
	// Action indicates what should happen: allow, deny, or mutate.
	Action StageAction
	// Itinerary is the changed itinerary (only if Action is mutate).
	Itinerary *domain.GeneratedItinerary
	// DenyReason explains why the pipeline was stopped.
	DenyReason string
}

// Stage processes an itinerary after generation.
type Stage interface {
	// Name returns the unique identifier for this stage.
	Name() string
	// Process executes the stage logic.
	Process(ctx context.Context, in *StageInput) (*StageOutput, error)
}

// ProgressReporter receives a progress update before each stage runs.
type ProgressReporter interface {
	Progress(message string, percent int) error
}

// PipelineExecutor runs post-generation stages.
type PipelineExecutor interface {
	Run(ctx context.Context, in *StageInput, progress ProgressReporter) (*domain.GeneratedItinerary, error)
}
