// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/tatami-systems/tatami/internal/adapters/standings"
)

// defaultStandingsLimit bounds GET /competitions/{id}/standings when the
// caller does not pass top=N.
const defaultStandingsLimit = 20

// StandingsDependencies defines the interface for standings reads.
type StandingsDependencies interface {
	Standings(ctx context.Context, competitionID string, limit int) ([]standings.Entry, error)
	CompetitorStanding(ctx context.Context, competitionID, competitorID string) (standings.Entry, error)
}

// StandingsHandler handles competition standings requests.
type StandingsHandler struct {
	deps StandingsDependencies
}

// NewStandingsHandler creates a new standings handler.
func NewStandingsHandler(deps StandingsDependencies) *StandingsHandler {
	return &StandingsHandler{deps: deps}
}

// standingsEntryResponse is one row of a standings board.
type standingsEntryResponse struct {
	Rank         int    `json:"rank"`
	CompetitorID string `json:"competitor_id"`
	Name         string `json:"name,omitempty"`
	Points       int    `json:"points"`
	Wins         int    `json:"wins"`
	Matches      int    `json:"matches"`
}

// standingsResponse is the read shape for GET /competitions/{id}/standings.
type standingsResponse struct {
	CompetitionID string                   `json:"competition_id"`
	Standings     []standingsEntryResponse `json:"standings"`
}

func toEntryResponse(e standings.Entry) standingsEntryResponse {
	return standingsEntryResponse{
		Rank:         e.Rank,
		CompetitorID: e.CompetitorID,
		Name:         e.Name,
		Points:       e.Points,
		Wins:         e.Wins,
		Matches:      e.Matches,
	}
}

// HandleStandings handles GET /competitions/{id}/standings requests.
func (h *StandingsHandler) HandleStandings(w http.ResponseWriter, r *http.Request, competitionID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	limit := defaultStandingsLimit
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		limit = n
	}

	entries, err := h.deps.Standings(r.Context(), competitionID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	rows := make([]standingsEntryResponse, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, toEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, standingsResponse{CompetitionID: competitionID, Standings: rows})
}

// HandleCompetitorStanding handles GET /competitions/{id}/standings/{competitorID}.
func (h *StandingsHandler) HandleCompetitorStanding(w http.ResponseWriter, r *http.Request, competitionID, competitorID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	entry, err := h.deps.CompetitorStanding(r.Context(), competitionID, competitorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}
