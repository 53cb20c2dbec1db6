// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// MatchDependencies defines the interface for match admission and lookup.
type MatchDependencies interface {
	Admit(ctx context.Context, m *model.Match, assignments []model.AssessorAssignment) (*model.Match, error)
	Match(ctx context.Context, matchID string) (model.Match, error)
	Assignments(ctx context.Context, matchID string) ([]model.AssessorAssignment, error)
}

// MatchesHandler handles match admission and lookup requests.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// competitorRequest mirrors the OpenAPI schema for a corner's competitor.
type competitorRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
	Bib  string `json:"bib"`
}

// rulesRequest mirrors the OpenAPI schema for a match ruleset. Optional
// fields fall back to the engine defaults.
type rulesRequest struct {
	TotalRounds          int    `json:"total_rounds"`
	RoundDurationSeconds int    `json:"round_duration_seconds"`
	AllowExtraRound      *bool  `json:"allow_extra_round,omitempty"`
	MaxExtraRounds       int    `json:"max_extra_rounds"`
	TieBreakRule         string `json:"tie_break_rule"`
	ScoreValues          []int  `json:"score_values"`
}

// officialRequest mirrors the OpenAPI schema for one assigned official.
type officialRequest struct {
	UserID   string `json:"user_id"`
	Position int    `json:"position"`
	Role     string `json:"role"`
}

// admitRequest mirrors the OpenAPI schema for POST /matches.
type admitRequest struct {
	ID            string            `json:"id"`
	CompetitionID string            `json:"competition_id"`
	WeightClassID string            `json:"weight_class_id"`
	FieldID       string            `json:"field_id"`
	Red           competitorRequest `json:"red"`
	Blue          competitorRequest `json:"blue"`
	Rules         rulesRequest      `json:"rules"`
	Officials     []officialRequest `json:"officials"`
}

func (a admitRequest) validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return errors.New("missing id")
	case strings.TrimSpace(a.Red.ID) == "":
		return errors.New("missing red.id")
	case strings.TrimSpace(a.Blue.ID) == "":
		return errors.New("missing blue.id")
	case a.Rules.TotalRounds < 1:
		return errors.New("rules.total_rounds must be at least 1")
	case a.Rules.RoundDurationSeconds < 1:
		return errors.New("rules.round_duration_seconds must be at least 1")
	case len(a.Officials) == 0:
		return errors.New("missing officials")
	}
	for _, o := range a.Officials {
		if strings.TrimSpace(o.UserID) == "" {
			return errors.New("official without user_id")
		}
	}
	return nil
}

func (a admitRequest) toModel() (*model.Match, []model.AssessorAssignment) {
	m := &model.Match{
		ID:            a.ID,
		CompetitionID: a.CompetitionID,
		WeightClassID: a.WeightClassID,
		FieldID:       a.FieldID,
		Red:           model.Competitor{ID: a.Red.ID, Name: a.Red.Name, Unit: a.Red.Unit, Bib: a.Red.Bib},
		Blue:          model.Competitor{ID: a.Blue.ID, Name: a.Blue.Name, Unit: a.Blue.Unit, Bib: a.Blue.Bib},
		Rules: model.Rules{
			TotalRounds:          a.Rules.TotalRounds,
			RoundDurationSeconds: a.Rules.RoundDurationSeconds,
			MaxExtraRounds:       a.Rules.MaxExtraRounds,
			TieBreakRule:         a.Rules.TieBreakRule,
			ScoreValues:          a.Rules.ScoreValues,
		},
	}
	if a.Rules.AllowExtraRound != nil {
		m.Rules.AllowExtraRound = *a.Rules.AllowExtraRound
	} else {
		m.Rules.AllowExtraRound = true
	}

	assignments := make([]model.AssessorAssignment, 0, len(a.Officials))
	for _, o := range a.Officials {
		assignments = append(assignments, model.AssessorAssignment{
			MatchID:  a.ID,
			UserID:   o.UserID,
			Position: o.Position,
			Role:     model.OfficialRole(strings.ToUpper(o.Role)),
		})
	}
	return m, assignments
}

// matchResponse is the read shape for a match with its officials.
type matchResponse struct {
	model.Match
	Officials []model.AssessorAssignment `json:"officials,omitempty"`
}

// HandleMatches handles POST /matches requests.
func (h *MatchesHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req admitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	m, assignments := req.toModel()
	admitted, err := h.deps.Admit(r.Context(), m, assignments)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, matchResponse{Match: *admitted, Officials: assignments})
}

// HandleGetMatch handles GET /matches/{id} requests.
func (h *MatchesHandler) HandleGetMatch(w http.ResponseWriter, r *http.Request, matchID string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	m, err := h.deps.Match(r.Context(), matchID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	assignments, err := h.deps.Assignments(r.Context(), matchID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Match: m, Officials: assignments})
}
