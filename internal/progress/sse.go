package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("progress: streaming not supported")

// SSEWriter frames each event as one server-sent event and flushes it.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	wrote   bool
}

// NewSSEWriter prepares w for an event stream. Headers are committed on the
// first event so the caller can still write a plain error before that.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	return &SSEWriter{w: w, flusher: flusher}, nil
}

func (s *SSEWriter) Send(ev domain.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("progress: marshal event: %w", err)
	}
	if !s.wrote {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.w.WriteHeader(http.StatusOK)
		s.wrote = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("progress: write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Started reports whether any event has been written.
func (s *SSEWriter) Started() bool {
	return s.wrote
}
