// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/match"
)

// ControlDependencies defines the interface for lifecycle commands.
type ControlDependencies interface {
	Control(ctx context.Context, matchID string, action model.ControlAction) (match.Outcome, error)
}

// ControlHandler handles match lifecycle commands.
type ControlHandler struct {
	deps ControlDependencies
}

// NewControlHandler creates a new control handler.
func NewControlHandler(deps ControlDependencies) *ControlHandler {
	return &ControlHandler{deps: deps}
}

// controlRequest mirrors the OpenAPI schema for POST /matches/{id}/control.
type controlRequest struct {
	Action string `json:"action"`
}

// controlResponse reports the match state after a command, including the
// unresolved-tie signal when the match ended level after all allowed rounds.
type controlResponse struct {
	Match         model.Match  `json:"match"`
	Round         *model.Round `json:"round,omitempty"`
	Ended         bool         `json:"ended"`
	UnresolvedTie bool         `json:"unresolved_tie,omitempty"`
	TieBreakRule  string       `json:"tie_break_rule,omitempty"`
}

// HandleControl handles POST /matches/{id}/control requests.
func (h *ControlHandler) HandleControl(w http.ResponseWriter, r *http.Request, matchID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	action, err := model.ParseControlAction(req.Action)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	out, err := h.deps.Control(r.Context(), matchID, action)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, controlResponse{
		Match:         out.Match,
		Round:         out.Round,
		Ended:         out.Ended,
		UnresolvedTie: out.UnresolvedTie,
		TieBreakRule:  out.TieBreakRule,
	})
}
