package api_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tatami-systems/tatami/internal/adapters/http/api"
	"github.com/tatami-systems/tatami/internal/adapters/standings"
	svc "github.com/tatami-systems/tatami/internal/app"
	"github.com/tatami-systems/tatami/internal/domain/consensus"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/match"
	. "github.com/smartystreets/goconvey/convey"
)

// stubDeps implements api.Dependencies with overridable behavior per test.
type stubDeps struct {
	admitErr     error
	controlErr   error
	voteErr      error
	eventErr     error
	matchErr     error
	standingsErr error

	voteResult match.VoteResult
	outcome    match.Outcome
}

func (s *stubDeps) Admit(_ context.Context, m *model.Match, _ []model.AssessorAssignment) (*model.Match, error) {
	if s.admitErr != nil {
		return nil, s.admitErr
	}
	m.Status = model.MatchPending
	return m, nil
}

func (s *stubDeps) Control(_ context.Context, matchID string, _ model.ControlAction) (match.Outcome, error) {
	if s.controlErr != nil {
		return match.Outcome{}, s.controlErr
	}
	out := s.outcome
	out.Match.ID = matchID
	return out, nil
}

func (s *stubDeps) CastVote(_ context.Context, matchID, _ string, corner model.Corner, score int) (match.VoteResult, error) {
	if s.voteErr != nil {
		return match.VoteResult{}, s.voteErr
	}
	res := s.voteResult
	res.MatchID = matchID
	res.Corner = corner
	res.Score = score
	return res, nil
}

func (s *stubDeps) RecordDirectEvent(_ context.Context, matchID, judgeID string, round, ts int, corner model.Corner, kind model.EventKind) (model.ScoreEvent, error) {
	if s.eventErr != nil {
		return model.ScoreEvent{}, s.eventErr
	}
	return model.ScoreEvent{ID: "e-1", MatchID: matchID, Round: round, TimestampInRound: ts, Corner: corner, Kind: kind, RecordingJudgeID: judgeID, Seq: 1}, nil
}

func (s *stubDeps) ClearVoteWindow(_ context.Context, _ string, _ model.Corner) error {
	return s.voteErr
}

func (s *stubDeps) Scoreboard(_ context.Context, matchID string) (*model.ScoreboardSnapshot, error) {
	if s.matchErr != nil {
		return nil, s.matchErr
	}
	return &model.ScoreboardSnapshot{MatchID: matchID, Status: model.MatchInProgress}, nil
}

func (s *stubDeps) Rounds(_ context.Context, matchID string) ([]model.Round, error) {
	if s.matchErr != nil {
		return nil, s.matchErr
	}
	return []model.Round{{MatchID: matchID, Number: 1, Kind: model.RoundMain}}, nil
}

func (s *stubDeps) Events(_ context.Context, matchID string, _ bool, _ uint64) ([]model.ScoreEvent, error) {
	if s.matchErr != nil {
		return nil, s.matchErr
	}
	return []model.ScoreEvent{{ID: "e-1", MatchID: matchID, Seq: 1}}, nil
}

func (s *stubDeps) Match(_ context.Context, matchID string) (model.Match, error) {
	if s.matchErr != nil {
		return model.Match{}, s.matchErr
	}
	return model.Match{ID: matchID, Status: model.MatchPending}, nil
}

func (s *stubDeps) Assignments(_ context.Context, matchID string) ([]model.AssessorAssignment, error) {
	return []model.AssessorAssignment{{MatchID: matchID, UserID: "a", Role: model.RoleAssessor}}, nil
}

func (s *stubDeps) Standings(_ context.Context, competitionID string, limit int) ([]standings.Entry, error) {
	if s.standingsErr != nil {
		return nil, s.standingsErr
	}
	rows := []standings.Entry{
		{Rank: 1, CompetitorID: "red-1", Name: "Asla", Points: 12, Wins: 2, Matches: 2},
		{Rank: 2, CompetitorID: "blue-1", Name: "Berk", Points: 7, Wins: 0, Matches: 2},
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *stubDeps) CompetitorStanding(_ context.Context, _, competitorID string) (standings.Entry, error) {
	if s.standingsErr != nil {
		return standings.Entry{}, s.standingsErr
	}
	return standings.Entry{Rank: 1, CompetitorID: competitorID, Points: 12, Wins: 2, Matches: 2}, nil
}

func (s *stubDeps) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true}
}

func newMux(deps *stubDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, deps).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

const admitBody = `{
	"id": "m-1",
	"red": {"id": "red-1", "name": "Asla"},
	"blue": {"id": "blue-1", "name": "Berk"},
	"rules": {"total_rounds": 3, "round_duration_seconds": 120},
	"officials": [
		{"user_id": "a", "position": 1, "role": "assessor"},
		{"user_id": "judge-1", "position": 2, "role": "judge"}
	]
}`

func TestAdmissionRoutes(t *testing.T) {
	Convey("Given the API routes", t, func() {
		deps := &stubDeps{}
		mux := newMux(deps)

		Convey("POST /matches with a valid body creates the match", func() {
			w := do(mux, http.MethodPost, "/matches", admitBody)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"id":"m-1"`)
			So(w.Body.String(), ShouldContainSubstring, `"PENDING"`)
		})

		Convey("POST /matches without rounds is a 400", func() {
			w := do(mux, http.MethodPost, "/matches", `{"id":"m-1","red":{"id":"r"},"blue":{"id":"b"},"rules":{},"officials":[{"user_id":"a"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST /matches with malformed JSON is a 400", func() {
			w := do(mux, http.MethodPost, "/matches", `{`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A duplicate match id maps to 409", func() {
			deps.admitErr = fmt.Errorf("%w: m-1", svc.ErrMatchExists)
			w := do(mux, http.MethodPost, "/matches", admitBody)
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("Backpressure maps to 429", func() {
			deps.admitErr = svc.ErrBackpressure
			w := do(mux, http.MethodPost, "/matches", admitBody)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
		})

		Convey("GET /matches/{id} returns the match with officials", func() {
			w := do(mux, http.MethodGet, "/matches/m-1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"officials"`)
		})

		Convey("An unknown id maps to 404", func() {
			deps.matchErr = svc.ErrMatchNotFound
			w := do(mux, http.MethodGet, "/matches/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestControlRoutes(t *testing.T) {
	Convey("Given the control route", t, func() {
		deps := &stubDeps{}
		mux := newMux(deps)

		Convey("A valid command returns the outcome", func() {
			deps.outcome = match.Outcome{Ended: true, UnresolvedTie: true, TieBreakRule: "weigh_in_weight"}
			w := do(mux, http.MethodPost, "/matches/m-1/control", `{"action":"END_MATCH"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"unresolved_tie":true`)
			So(w.Body.String(), ShouldContainSubstring, `"weigh_in_weight"`)
		})

		Convey("An unknown action is a 400", func() {
			w := do(mux, http.MethodPost, "/matches/m-1/control", `{"action":"EXPLODE"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An illegal transition maps to 409", func() {
			deps.controlErr = fmt.Errorf("%w: START from ENDED", match.ErrInvalidTransition)
			w := do(mux, http.MethodPost, "/matches/m-1/control", `{"action":"START"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("GET on the control route is not found", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/control", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestVoteRoutes(t *testing.T) {
	Convey("Given the vote routes", t, func() {
		deps := &stubDeps{}
		mux := newMux(deps)

		Convey("A vote reports the window state", func() {
			deps.voteResult = match.VoteResult{Round: 1, VoteCount: 2, TotalAssessors: 5}
			w := do(mux, http.MethodPost, "/matches/m-1/votes", `{"assessor_id":"a","corner":"RED","score":1}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"score":1`)
			So(w.Body.String(), ShouldContainSubstring, `"vote_count":2`)
			So(w.Body.String(), ShouldContainSubstring, `"score_accepted":false`)
		})

		Convey("A vote from a non-assessor maps to 403", func() {
			deps.voteErr = consensus.ErrNotAssigned
			w := do(mux, http.MethodPost, "/matches/m-1/votes", `{"assessor_id":"x","corner":"RED","score":1}`)
			So(w.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("A late vote into a closed window maps to 409", func() {
			deps.voteErr = fmt.Errorf("%w: round 1 RED", consensus.ErrWindowClosed)
			w := do(mux, http.MethodPost, "/matches/m-1/votes", `{"assessor_id":"e","corner":"RED","score":1}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
		})

		Convey("A disallowed score value maps to 400", func() {
			deps.voteErr = fmt.Errorf("%w: 7", consensus.ErrInvalidScoreValue)
			w := do(mux, http.MethodPost, "/matches/m-1/votes", `{"assessor_id":"a","corner":"RED","score":7}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown corner is a 400", func() {
			w := do(mux, http.MethodPost, "/matches/m-1/votes", `{"assessor_id":"a","corner":"GREEN","score":1}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("votes/clear clears the window", func() {
			w := do(mux, http.MethodPost, "/matches/m-1/votes/clear", `{"corner":"RED"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"cleared"`)
		})
	})
}

func TestEventRoutes(t *testing.T) {
	Convey("Given the event routes", t, func() {
		deps := &stubDeps{}
		mux := newMux(deps)

		Convey("POST records a direct event", func() {
			w := do(mux, http.MethodPost, "/matches/m-1/events", `{"judge_id":"judge-1","corner":"BLUE","kind":"WARNING"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(w.Body.String(), ShouldContainSubstring, `"WARNING"`)
		})

		Convey("POST with an unknown kind is a 400", func() {
			w := do(mux, http.MethodPost, "/matches/m-1/events", `{"judge_id":"judge-1","corner":"BLUE","kind":"CARTWHEEL"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("POST against a missing round maps to 404", func() {
			deps.eventErr = fmt.Errorf("%w: round 5", match.ErrRoundNotFound)
			w := do(mux, http.MethodPost, "/matches/m-1/events", `{"judge_id":"judge-1","round":5,"corner":"BLUE","kind":"WARNING"}`)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("GET returns the feed", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/events?since_seq=0&order=asc", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"events"`)
		})

		Convey("GET with a bad cursor is a 400", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/events?since_seq=banana", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET with a bad order is a 400", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/events?order=sideways", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestReadRoutes(t *testing.T) {
	Convey("Given the read routes", t, func() {
		deps := &stubDeps{}
		mux := newMux(deps)

		Convey("GET scoreboard returns the snapshot", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/scoreboard", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"remaining_seconds"`)
		})

		Convey("GET rounds returns the history", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/rounds", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rounds"`)
		})

		Convey("GET stats returns service counters", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started"`)
		})

		Convey("GET healthz serves metrics", func() {
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("An unknown sub-resource is not found", func() {
			w := do(mux, http.MethodGet, "/matches/m-1/telemetry", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStandingsRoutes(t *testing.T) {
	Convey("Given the standings routes", t, func() {
		deps := &stubDeps{}
		mux := newMux(deps)

		Convey("GET standings returns ranked rows", func() {
			w := do(mux, http.MethodGet, "/competitions/comp-1/standings", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"competition_id":"comp-1"`)
			So(w.Body.String(), ShouldContainSubstring, `"competitor_id":"red-1"`)
		})

		Convey("GET standings honors the top parameter", func() {
			w := do(mux, http.MethodGet, "/competitions/comp-1/standings?top=1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"red-1"`)
			So(w.Body.String(), ShouldNotContainSubstring, `"blue-1"`)
		})

		Convey("A malformed top parameter is a bad request", func() {
			w := do(mux, http.MethodGet, "/competitions/comp-1/standings?top=lots", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An invalid limit maps to a bad request", func() {
			deps.standingsErr = standings.ErrInvalidLimit
			w := do(mux, http.MethodGet, "/competitions/comp-1/standings?top=0", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET one competitor's row returns it", func() {
			w := do(mux, http.MethodGet, "/competitions/comp-1/standings/red-1", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rank":1`)
		})

		Convey("An unranked competitor is not found", func() {
			deps.standingsErr = standings.ErrNotFound
			w := do(mux, http.MethodGet, "/competitions/comp-1/standings/ghost", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("An unknown competition resource is not found", func() {
			w := do(mux, http.MethodGet, "/competitions/comp-1/bracket", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
