// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tatami-systems/tatami/internal/adapters/standings"
	svc "github.com/tatami-systems/tatami/internal/app"
	"github.com/tatami-systems/tatami/internal/domain/consensus"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/match"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Admit(ctx context.Context, m *model.Match, assignments []model.AssessorAssignment) (*model.Match, error)
	Control(ctx context.Context, matchID string, action model.ControlAction) (match.Outcome, error)
	CastVote(ctx context.Context, matchID, assessorID string, corner model.Corner, score int) (match.VoteResult, error)
	RecordDirectEvent(ctx context.Context, matchID, judgeID string, round, timestampInRound int, corner model.Corner, kind model.EventKind) (model.ScoreEvent, error)
	ClearVoteWindow(ctx context.Context, matchID string, corner model.Corner) error
	Scoreboard(ctx context.Context, matchID string) (*model.ScoreboardSnapshot, error)
	Rounds(ctx context.Context, matchID string) ([]model.Round, error)
	Events(ctx context.Context, matchID string, descending bool, sinceSeq uint64) ([]model.ScoreEvent, error)
	Match(ctx context.Context, matchID string) (model.Match, error)
	Assignments(ctx context.Context, matchID string) ([]model.AssessorAssignment, error)
	Standings(ctx context.Context, competitionID string, limit int) ([]standings.Entry, error)
	CompetitorStanding(ctx context.Context, competitionID, competitorID string) (standings.Entry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	matchesHandler    *MatchesHandler
	controlHandler    *ControlHandler
	votesHandler      *VotesHandler
	eventsHandler     *EventsHandler
	scoreboardHandler *ScoreboardHandler
	roundsHandler     *RoundsHandler
	standingsHandler  *StandingsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		matchesHandler:    NewMatchesHandler(deps),
		controlHandler:    NewControlHandler(deps),
		votesHandler:      NewVotesHandler(deps),
		eventsHandler:     NewEventsHandler(deps),
		scoreboardHandler: NewScoreboardHandler(deps),
		roundsHandler:     NewRoundsHandler(deps),
		standingsHandler:  NewStandingsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleMatches, "matches"))
	mux.HandleFunc("/matches/", MetricsMiddleware(s.routeMatch, "matches"))
	mux.HandleFunc("/competitions/", MetricsMiddleware(s.routeCompetition, "competitions"))
}

// routeCompetition dispatches /competitions/{id}/standings[/{competitorID}].
func (s *Server) routeCompetition(w http.ResponseWriter, r *http.Request) {
	competitionID, resource, ok := splitCompetitionPath(r.URL.Path)
	if !ok || competitionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch {
	case resource == "standings":
		s.standingsHandler.HandleStandings(w, r, competitionID)
	case strings.HasPrefix(resource, "standings/"):
		s.standingsHandler.HandleCompetitorStanding(w, r, competitionID, strings.TrimPrefix(resource, "standings/"))
	default:
		http.NotFound(w, r)
	}
}

// splitCompetitionPath extracts the competition id and trailing resource
// from a /competitions/{id}/{resource} path.
func splitCompetitionPath(path string) (competitionID, resource string, ok bool) {
	rest := strings.TrimPrefix(path, "/competitions/")
	if rest == path {
		return "", "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i], rest[i+1:], true
	}
	return rest, "", true
}

// routeMatch dispatches /matches/{id} and /matches/{id}/{resource}.
func (s *Server) routeMatch(w http.ResponseWriter, r *http.Request) {
	matchID, resource, ok := splitMatchPath(r.URL.Path)
	if !ok || matchID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch resource {
	case "":
		s.matchesHandler.HandleGetMatch(w, r, matchID)
	case "control":
		s.controlHandler.HandleControl(w, r, matchID)
	case "votes":
		s.votesHandler.HandleVotes(w, r, matchID)
	case "votes/clear":
		s.votesHandler.HandleClear(w, r, matchID)
	case "events":
		s.eventsHandler.HandleEvents(w, r, matchID)
	case "scoreboard":
		s.scoreboardHandler.HandleGetScoreboard(w, r, matchID)
	case "rounds":
		s.roundsHandler.HandleGetRounds(w, r, matchID)
	default:
		http.NotFound(w, r)
	}
}

// splitMatchPath extracts the match id and trailing resource from a
// /matches/{id}[/{resource}] path.
func splitMatchPath(path string) (matchID, resource string, ok bool) {
	rest := strings.TrimPrefix(path, "/matches/")
	if rest == path {
		return "", "", false
	}
	rest = strings.TrimSuffix(rest, "/")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i], rest[i+1:], true
	}
	return rest, "", true
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates engine errors into HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, svc.ErrMatchNotFound), errors.Is(err, match.ErrRoundNotFound),
		errors.Is(err, standings.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, consensus.ErrNotAssigned):
		writeError(w, http.StatusForbidden, "not_assigned", err)
	case errors.Is(err, match.ErrInvalidTransition), errors.Is(err, consensus.ErrWindowClosed), errors.Is(err, svc.ErrMatchExists):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, match.ErrValidation), errors.Is(err, consensus.ErrInvalidScoreValue),
		errors.Is(err, standings.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, svc.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
