package api

import (
	"net/http"
)

// StatsProvider exposes engine counters for the stats endpoint: registry
// size, active matches, persistence queue depth and worker configuration.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves a plain JSON view of the engine counters, useful when
// a Prometheus scrape is not at hand.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler backed by the given provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
