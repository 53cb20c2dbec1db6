// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// EventDependencies defines the interface for the event feed.
type EventDependencies interface {
	RecordDirectEvent(ctx context.Context, matchID, judgeID string, round, timestampInRound int, corner model.Corner, kind model.EventKind) (model.ScoreEvent, error)
	Events(ctx context.Context, matchID string, descending bool, sinceSeq uint64) ([]model.ScoreEvent, error)
}

// EventsHandler handles event feed requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// directEventRequest mirrors the OpenAPI schema for POST /matches/{id}/events.
// Round 0 targets the current round at the live round clock.
type directEventRequest struct {
	JudgeID          string `json:"judge_id"`
	Round            int    `json:"round"`
	TimestampInRound int    `json:"timestamp_in_round"`
	Corner           string `json:"corner"`
	Kind             string `json:"kind"`
}

func (e directEventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.JudgeID) == "":
		return errors.New("missing judge_id")
	case strings.TrimSpace(e.Corner) == "":
		return errors.New("missing corner")
	case strings.TrimSpace(e.Kind) == "":
		return errors.New("missing kind")
	case e.Round < 0:
		return errors.New("round must not be negative")
	}
	return nil
}

// eventFeedResponse is the read shape for GET /matches/{id}/events.
type eventFeedResponse struct {
	MatchID string             `json:"match_id"`
	Events  []model.ScoreEvent `json:"events"`
}

// HandleEvents handles POST and GET /matches/{id}/events requests.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request, matchID string) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r, matchID)
	case http.MethodGet:
		h.handleGet(w, r, matchID)
	default:
		http.NotFound(w, r)
	}
}

func (h *EventsHandler) handlePost(w http.ResponseWriter, r *http.Request, matchID string) {
	var req directEventRequest
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
	kind, err := model.ParseEventKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	event, err := h.deps.RecordDirectEvent(r.Context(), matchID, req.JudgeID, req.Round, req.TimestampInRound, corner, kind)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

func (h *EventsHandler) handleGet(w http.ResponseWriter, r *http.Request, matchID string) {
	q := r.URL.Query()

	var sinceSeq uint64
	if raw := q.Get("since_seq"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("invalid since_seq"))
			return
		}
		sinceSeq = parsed
	}

	descending := false
	switch strings.ToLower(q.Get("order")) {
	case "", "asc":
	case "desc":
		descending = true
	default:
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("order must be asc or desc"))
		return
	}

	events, err := h.deps.Events(r.Context(), matchID, descending, sinceSeq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventFeedResponse{MatchID: matchID, Events: events})
}
