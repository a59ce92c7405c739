package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

// mockStage is a test helper that records calls and returns configured responses.
type mockStage struct {
	name   string
	output *ports.StageOutput
	err    error
	delay  time.Duration
	calls  []*ports.StageInput
}

func (s *mockStage) Name() string { return s.name }

func (s *mockStage) Process(ctx context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	s.calls = append(s.calls, in)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.output != nil {
		return s.output, nil
	}
	return &ports.StageOutput{Action: ports.ActionAllow}, nil
}

type recordingProgress struct {
	messages []string
	percents []int
}

func (r *recordingProgress) Progress(message string, percent int) error {
	r.messages = append(r.messages, message)
	r.percents = append(r.percents, percent)
	return nil
}

func testInput() *ports.StageInput {
	return &ports.StageInput{
		UserID:  "user-1",
		Request: &domain.GenerationRequest{City: "Seoul", Days: 1},
		Itinerary: &domain.GeneratedItinerary{
			Title: "Seoul",
			City:  "Seoul",
			Days:  1,
			DailyPlans: []domain.DailyPlan{{
				Day:        1,
				Activities: []domain.Activity{{Name: "Gwangjang Market"}},
			}},
		},
	}
}

func TestExecutor_Run_Empty(t *testing.T) {
	e := NewExecutor(ExecutorConfig{})
	in := testInput()

	result, err := e.Run(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != in.Itinerary {
		t.Error("expected same itinerary when no stages")
	}
}

func TestExecutor_Run_NoItinerary(t *testing.T) {
	e := NewExecutor(ExecutorConfig{})
	if _, err := e.Run(context.Background(), &ports.StageInput{}, nil); err == nil {
		t.Fatal("expected error for missing itinerary")
	}
}

func TestExecutor_Run_OrderAndProgress(t *testing.T) {
	first := &mockStage{name: "first"}
	second := &mockStage{name: "second"}

	e := NewExecutor(ExecutorConfig{Stages: []StageConfig{
		{Order: 2, Stage: second, Message: "Second", Percent: 96},
		{Order: 1, Stage: first, Message: "First", Percent: 92},
	}})

	if got := e.Stages(); !reflect.DeepEqual(got, []string{"first", "second"}) {
		t.Fatalf("Stages() = %v", got)
	}

	progress := &recordingProgress{}
	if _, err := e.Run(context.Background(), testInput(), progress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(progress.messages, []string{"First", "Second"}) {
		t.Errorf("messages = %v", progress.messages)
	}
	if !reflect.DeepEqual(progress.percents, []int{92, 96}) {
		t.Errorf("percents = %v", progress.percents)
	}
	if len(first.calls) != 1 || len(second.calls) != 1 {
		t.Errorf("calls = %d/%d, want 1/1", len(first.calls), len(second.calls))
	}
	if first.calls[0].UserID != "user-1" {
		t.Errorf("UserID not forwarded: %q", first.calls[0].UserID)
	}
}

func TestExecutor_Run_Mutate(t *testing.T) {
	mutated := &domain.GeneratedItinerary{ID: "it-1", Title: "mutated"}
	mutator := &mockStage{
		name:   "mutator",
		output: &ports.StageOutput{Action: ports.ActionMutate, Itinerary: mutated},
	}
	observer := &mockStage{name: "observer"}

	e := NewExecutor(ExecutorConfig{Stages: []StageConfig{
		{Order: 1, Stage: mutator},
		{Order: 2, Stage: observer},
	}})

	result, err := e.Run(context.Background(), testInput(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != mutated {
		t.Errorf("expected mutated itinerary, got %+v", result)
	}
	if observer.calls[0].Itinerary != mutated {
		t.Error("later stage should see the mutated itinerary")
	}
}

func TestExecutor_Run_Deny(t *testing.T) {
	deny := &mockStage{
		name:   "moderation",
		output: &ports.StageOutput{Action: ports.ActionDeny, DenyReason: "blocked"},
	}
	after := &mockStage{name: "after"}

	e := NewExecutor(ExecutorConfig{Stages: []StageConfig{
		{Order: 1, Stage: deny, OnError: ports.ActionAllow},
		{Order: 2, Stage: after},
	}})

	_, err := e.Run(context.Background(), testInput(), nil)
	if !IsDenied(err) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	var denied *DeniedError
	if !errors.As(err, &denied) || denied.StageName != "moderation" || denied.Reason != "blocked" {
		t.Errorf("unexpected denial: %+v", denied)
	}
	if len(after.calls) != 0 {
		t.Error("stage after a denial should not run")
	}
}

func TestExecutor_Run_OnError(t *testing.T) {
	tests := []struct {
		name      string
		onError   ports.StageAction
		wantErr   bool
		wantAfter int
	}{
		{"allow continues", ports.ActionAllow, false, 1},
		{"deny stops", ports.ActionDeny, true, 0},
		{"default is deny", "", true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failing := &mockStage{name: "failing", err: errors.New("boom")}
			after := &mockStage{name: "after"}
			e := NewExecutor(ExecutorConfig{Stages: []StageConfig{
				{Order: 1, Stage: failing, OnError: tt.onError},
				{Order: 2, Stage: after},
			}})

			in := testInput()
			result, err := e.Run(context.Background(), in, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && result != in.Itinerary {
				t.Error("failed allow stage should leave the itinerary untouched")
			}
			if len(after.calls) != tt.wantAfter {
				t.Errorf("after calls = %d, want %d", len(after.calls), tt.wantAfter)
			}
		})
	}
}

func TestExecutor_Run_StageTimeout(t *testing.T) {
	slow := &mockStage{name: "slow", delay: time.Second}
	e := NewExecutor(ExecutorConfig{Stages: []StageConfig{
		{Order: 1, Stage: slow, Timeout: 10 * time.Millisecond, OnError: ports.ActionAllow},
	}})

	start := time.Now()
	if _, err := e.Run(context.Background(), testInput(), nil); err != nil {
		t.Fatalf("timed out allow stage should degrade, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("stage timeout was not applied")
	}
}

func TestExecutor_Run_Canceled(t *testing.T) {
	stage := &mockStage{name: "never"}
	e := NewExecutor(ExecutorConfig{Stages: []StageConfig{{Order: 1, Stage: stage, OnError: ports.ActionAllow}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Run(ctx, testInput(), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(stage.calls) != 0 {
		t.Error("stage should not run after cancellation")
	}
}
