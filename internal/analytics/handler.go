package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Handler exposes the aggregator's rollup over HTTP.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves the current aggregated stats as JSON.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.aggregator.Stats(), h.logger)
}

// WriteJSON encodes data as a JSON response. Encoding failures are logged;
// by then the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to write analytics response", "error", err)
	}
}
