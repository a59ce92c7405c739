package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
	"github.com/tjfontaine/polyglot-itinerary/internal/pkg/config"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisher_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.KafkaConfig
		wantErr bool
	}{
		{"no brokers", config.KafkaConfig{Topic: "t"}, true},
		{"no topic", config.KafkaConfig{Brokers: []string{"localhost:9092"}}, true},
		{"valid", config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPublisher(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if p != nil {
				p.Close()
			}
		})
	}
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newWithWriter(w)

	ts := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	ev := &domain.ActivityEvent{
		ID:        "ev-1",
		Type:      domain.ActivityItineraryGenerated,
		UserID:    "user-1",
		Timestamp: ts,
		Data:      domain.GeneratedEventData{City: "Seoul", Days: 3},
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "user-1" {
		t.Errorf("Key = %q", msg.Key)
	}
	if !msg.Time.Equal(ts) {
		t.Errorf("Time = %v", msg.Time)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != string(domain.ActivityItineraryGenerated) {
		t.Errorf("Headers = %+v", msg.Headers)
	}

	var decoded domain.ActivityEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded.ID != "ev-1" || decoded.Type != domain.ActivityItineraryGenerated {
		t.Errorf("decoded = %+v", decoded)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close() = %v, closed = %v", err, w.closed)
	}
}

func TestPublish_WriteError(t *testing.T) {
	p := newWithWriter(&fakeWriter{err: errors.New("broker down")})
	if err := p.Publish(context.Background(), &domain.ActivityEvent{UserID: "u"}); err == nil {
		t.Fatal("expected write error")
	}
}
