package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

// Executor runs post-generation stages sequentially in order.
type Executor struct {
	stages []StageConfig
	logger *slog.Logger
}

// ExecutorConfig configures an executor from stage configurations.
type ExecutorConfig struct {
	Stages []StageConfig
	Logger *slog.Logger
}

// StageConfig is the configuration for a single stage.
type StageConfig struct {
	Name  string
	Order int
	Stage ports.Stage

	// Timeout bounds a single Process call; zero leaves only the caller's deadline.
	Timeout time.Duration
	// OnError is allow or deny (default deny).
	OnError ports.StageAction

	// Message and Percent are reported before the stage runs. Empty Message reports nothing.
	Message string
	Percent int
}

// NewExecutor creates an executor from configuration.
func NewExecutor(cfg ExecutorConfig) *Executor {
	stages := make([]StageConfig, 0, len(cfg.Stages))
	for _, s := range cfg.Stages {
		if s.Stage == nil {
			continue
		}
		if s.Name == "" {
			s.Name = s.Stage.Name()
		}
		if s.OnError == "" {
			s.OnError = ports.ActionDeny
		}
		stages = append(stages, s)
	}

	// Sort by order
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Order < stages[j].Order
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{stages: stages, logger: logger}
}

// Run executes all stages in order and returns the (possibly mutated)
// itinerary. The input itinerary is never modified.
func (e *Executor) Run(ctx context.Context, in *ports.StageInput, progress ports.ProgressReporter) (*domain.GeneratedItinerary, error) {
	if in == nil || in.Itinerary == nil {
		return nil, errors.New("pipeline: no itinerary to process")
	}

	current := in.Itinerary
	for _, sc := range e.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if sc.Message != "" && progress != nil {
			// A closed progress channel only means nobody is listening.
			_ = progress.Progress(sc.Message, sc.Percent)
		}

		input := &ports.StageInput{
			UserID:    in.UserID,
			Request:   in.Request,
			Outcome:   in.Outcome,
			Itinerary: current,
			Metadata:  in.Metadata,
		}

		output, err := e.process(ctx, sc, input)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if sc.OnError == ports.ActionAllow {
				e.logger.Warn("pipeline stage failed, continuing",
					slog.String("stage", sc.Name),
					slog.String("error", err.Error()),
				)
				continue
			}
			return nil, fmt.Errorf("pipeline stage %s error: %w", sc.Name, err)
		}

		switch output.Action {
		case ports.ActionDeny:
			reason := output.DenyReason
			if reason == "" {
				reason = "denied by pipeline stage " + sc.Name
			}
			return nil, &DeniedError{
				StageName: sc.Name,
				Reason:    reason,
			}
		case ports.ActionMutate:
			if output.Itinerary != nil {
				current = output.Itinerary
			}
		case ports.ActionAllow:
			// Continue with current itinerary
		}
	}

	return current, nil
}

func (e *Executor) process(ctx context.Context, sc StageConfig, in *ports.StageInput) (*ports.StageOutput, error) {
	if sc.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, sc.Timeout)
		defer cancel()
	}

	start := time.Now()
	output, err := sc.Stage.Process(ctx, in)
	e.logger.Debug("pipeline stage finished",
		slog.String("stage", sc.Name),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", err == nil),
	)
	if err != nil {
		return nil, err
	}
	if output == nil {
		return &ports.StageOutput{Action: ports.ActionAllow}, nil
	}
	return output, nil
}

// Stages returns the configured stage names in execution order.
func (e *Executor) Stages() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name
	}
	return names
}

// DeniedError is returned when a pipeline stage denies an itinerary.
type DeniedError struct {
	StageName string
	Reason    string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("pipeline denied by %s: %s", e.StageName, e.Reason)
}

// IsDenied returns true if the error is a pipeline denial.
func IsDenied(err error) bool {
	var denied *DeniedError
	return errors.As(err, &denied)
}

// Ensure Executor implements the interface.
var _ ports.PipelineExecutor = (*Executor)(nil)
