// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/match"
)

// VoteDependencies defines the interface for assessor voting.
type VoteDependencies interface {
	CastVote(ctx context.Context, matchID, assessorID string, corner model.Corner, score int) (match.VoteResult, error)
	ClearVoteWindow(ctx context.Context, matchID string, corner model.Corner) error
}

// VotesHandler handles assessor vote requests.
type VotesHandler struct {
	deps VoteDependencies
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies) *VotesHandler {
	return &VotesHandler{deps: deps}
}

// voteRequest mirrors the OpenAPI schema for POST /matches/{id}/votes.
type voteRequest struct {
	AssessorID string `json:"assessor_id"`
	Corner     string `json:"corner"`
	Score      int    `json:"score"`
}

func (v voteRequest) validate() error {
	switch {
	case strings.TrimSpace(v.AssessorID) == "":
		return errors.New("missing assessor_id")
	case strings.TrimSpace(v.Corner) == "":
		return errors.New("missing corner")
	}
	return nil
}

// voteResponse reports the state of the decision window after a vote.
type voteResponse struct {
	MatchID        string            `json:"match_id"`
	Round          int               `json:"round"`
	Corner         model.Corner      `json:"corner"`
	Score          int               `json:"score"`
	VoteCount      int               `json:"vote_count"`
	TotalAssessors int               `json:"total_assessors"`
	ScoreAccepted  bool              `json:"score_accepted"`
	Votes          map[string]int    `json:"votes,omitempty"`
	Event          *model.ScoreEvent `json:"event,omitempty"`
}

// clearRequest mirrors the OpenAPI schema for POST /matches/{id}/votes/clear.
type clearRequest struct {
	Corner string `json:"corner"`
}

// HandleVotes handles POST /matches/{id}/votes requests.
func (h *VotesHandler) HandleVotes(w http.ResponseWriter, r *http.Request, matchID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	corner, err := model.ParseCorner(req.Corner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := h.deps.CastVote(r.Context(), matchID, req.AssessorID, corner, req.Score)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{
		MatchID:        res.MatchID,
		Round:          res.Round,
		Corner:         res.Corner,
		Score:          res.Score,
		VoteCount:      res.VoteCount,
		TotalAssessors: res.TotalAssessors,
		ScoreAccepted:  res.ScoreAccepted,
		Votes:          res.Votes,
		Event:          res.Event,
	})
}

// HandleClear handles POST /matches/{id}/votes/clear requests.
func (h *VotesHandler) HandleClear(w http.ResponseWriter, r *http.Request, matchID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	corner, err := model.ParseCorner(req.Corner)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	if err := h.deps.ClearVoteWindow(r.Context(), matchID, corner); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
