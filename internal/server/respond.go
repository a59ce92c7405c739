package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/domain"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Debug("write json response", slog.String("error", err.Error()))
	}
}

// WriteError writes err as {error, message, field?} with its status code.
func WriteError(w http.ResponseWriter, err *domain.APIError) {
	WriteJSON(w, err.HTTPStatusCode(), err)
}
