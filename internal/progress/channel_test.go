package progress

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

func TestChannel_OrderingContract(t *testing.T) {
	buf := NewBuffer()
	ch := New(context.Background(), buf)

	// Progress before Start synthesizes a start.
	_ = ch.Progress("Drafting", 10)
	_ = ch.Start("ignored duplicate")
	_ = ch.Phase1("Draft ready", 40, domain.Phase1Data{Days: 3})
	_ = ch.Progress("going backwards", 20)
	_ = ch.Progress("too far", 150)
	_ = ch.Complete(map[string]bool{"success": true})

	if err := ch.Progress("late", 50); !errors.Is(err, ErrClosed) {
		t.Errorf("after terminal err = %v, want ErrClosed", err)
	}
	if err := ch.Fail("late"); !errors.Is(err, ErrClosed) {
		t.Errorf("second terminal err = %v, want ErrClosed", err)
	}

	events := buf.Events()
	wantTypes := []domain.EventType{domain.EventStart, domain.EventProgress, domain.EventPhase1, domain.EventProgress, domain.EventProgress, domain.EventComplete}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantTypes), events)
	}
	last := -1
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, ev.Type, wantTypes[i])
		}
		if ev.Percent < last {
			t.Errorf("percent decreased at %d: %d < %d", i, ev.Percent, last)
		}
		last = ev.Percent
	}
	if events[3].Percent != 40 || events[4].Percent != 99 {
		t.Errorf("clamped percents = %d, %d", events[3].Percent, events[4].Percent)
	}
	if final, ok := buf.Final(); !ok || final.Percent != 100 {
		t.Errorf("Final() = %+v, %v", final, ok)
	}
	if !ch.Closed() {
		t.Error("Closed() = false after complete")
	}
}

func TestChannel_ErrorDoesNotReach100(t *testing.T) {
	buf := NewBuffer()
	ch := New(context.Background(), buf)
	_ = ch.Start("go")
	_ = ch.Progress("Drafting", 10)
	_ = ch.Fail("Generation failed")

	final, ok := buf.Final()
	if !ok || final.Type != domain.EventError || final.Percent != 10 {
		t.Fatalf("Final() = %+v, %v", final, ok)
	}
}

func TestChannel_DropsAfterCancel(t *testing.T) {
	buf := NewBuffer()
	ctx, cancel := context.WithCancel(context.Background())
	ch := New(ctx, buf)
	_ = ch.Start("go")
	cancel()

	if err := ch.Progress("after cancel", 50); !errors.Is(err, ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if err := ch.Fail("after cancel"); !errors.Is(err, ErrCanceled) {
		t.Errorf("err = %v, want ErrCanceled", err)
	}
	if n := len(buf.Events()); n != 1 {
		t.Errorf("got %d events, want only start", n)
	}
}

type failingSink struct{ n int }

func (f *failingSink) Send(domain.ProgressEvent) error {
	f.n++
	return errors.New("broken pipe")
}

func TestChannel_SinkErrorEndsEmission(t *testing.T) {
	sink := &failingSink{}
	ch := New(context.Background(), sink)
	if err := ch.Start("go"); err == nil {
		t.Fatal("expected sink error")
	}
	_ = ch.Progress("more", 10)
	if sink.n != 1 {
		t.Errorf("sink called %d times, want 1", sink.n)
	}
	if ch.Err() == nil {
		t.Error("Err() = nil")
	}
}

func TestChannel_Nil(t *testing.T) {
	var ch *Channel
	if err := ch.Progress("x", 1); err != nil {
		t.Errorf("nil channel Progress() = %v", err)
	}
	if ch.Closed() {
		t.Error("nil channel reported closed")
	}
}

func TestSSEWriter_Framing(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := NewSSEWriter(rec)
	if err != nil {
		t.Fatalf("NewSSEWriter() error = %v", err)
	}
	ch := New(context.Background(), sse)
	_ = ch.Start("go")
	_ = ch.Phase2("Enriched", 85, domain.Phase2Data{FallbackUsed: domain.FallbackQASkipped})
	_ = ch.Complete(map[string]any{"success": true})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !rec.Flushed {
		t.Error("expected flush")
	}

	var got []domain.EventType
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			t.Fatalf("unexpected line %q", line)
		}
		var ev domain.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad event json %q: %v", line, err)
		}
		got = append(got, ev.Type)
	}
	want := []domain.EventType{domain.EventStart, domain.EventPhase2, domain.EventComplete}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	if strings.Count(rec.Body.String(), "\n\n") != 3 {
		t.Errorf("expected one blank-line separator per event: %q", rec.Body.String())
	}
}
