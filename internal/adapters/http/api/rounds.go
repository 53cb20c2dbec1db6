// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// RoundDependencies defines the interface for round history reads.
type RoundDependencies interface {
	Rounds(ctx context.Context, matchID string) ([]model.Round, error)
}

// RoundsHandler handles round history requests.
type RoundsHandler struct {
	deps RoundDependencies
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundDependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps}
}

// roundsResponse is the read shape for GET /matches/{id}/rounds.
type roundsResponse struct {
	MatchID string        `json:"match_id"`
	Rounds  []model.Round `json:"rounds"`
}

// HandleGetRounds handles GET /matches/{id}/rounds requests.
func (h *RoundsHandler) HandleGetRounds(w http.ResponseWriter, r *http.Request, matchID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	rounds, err := h.deps.Rounds(r.Context(), matchID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, roundsResponse{MatchID: matchID, Rounds: rounds})
}
