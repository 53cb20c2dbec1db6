package match_test

import (
	"context"
	"testing"
	"time"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/domain/timer"
	"github.com/tatami-systems/tatami/internal/match"
	"github.com/tatami-systems/tatami/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type opRecorder struct {
	ops []store.Op
}

func (r *opRecorder) sink(op store.Op) {
	r.ops = append(r.ops, op)
}

func (r *opRecorder) count(kind store.OpKind) int {
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

func testMatch(totalRounds int) *model.Match {
	return &model.Match{
		ID:            "m-1",
		CompetitionID: "comp-1",
		WeightClassID: "wc-60",
		Red:           model.Competitor{ID: "red-1", Name: "Asla", Unit: "Unit A", Bib: "12"},
		Blue:          model.Competitor{ID: "blue-1", Name: "Berk", Unit: "Unit B", Bib: "34"},
		Rules: model.Rules{
			TotalRounds:          totalRounds,
			RoundDurationSeconds: 120,
			AllowExtraRound:      true,
			MaxExtraRounds:       1,
			TieBreakRule:         "weigh_in_weight",
			ScoreValues:          []int{1, 2},
		},
	}
}

func officials() []model.AssessorAssignment {
	return []model.AssessorAssignment{
		{MatchID: "m-1", UserID: "a", Position: 1, Role: model.RoleAssessor},
		{MatchID: "m-1", UserID: "b", Position: 2, Role: model.RoleAssessor},
		{MatchID: "m-1", UserID: "c", Position: 3, Role: model.RoleAssessor},
		{MatchID: "m-1", UserID: "d", Position: 4, Role: model.RoleAssessor},
		{MatchID: "m-1", UserID: "e", Position: 5, Role: model.RoleAssessor},
		{MatchID: "m-1", UserID: "judge-1", Position: 6, Role: model.RoleJudge},
	}
}

func newController(t *testing.T, m *model.Match) (*match.Controller, *timer.ManualClock, *opRecorder) {
	t.Helper()
	clock := timer.NewManualClock(time.Unix(10_000, 0))
	rec := &opRecorder{}
	ctrl, err := match.New(m, officials(),
		match.WithClock(clock),
		match.WithSink(rec.sink),
	)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return ctrl, clock, rec
}

// score records n direct judge events of the given kind for a corner.
func score(t *testing.T, ctrl *match.Controller, corner model.Corner, kind model.EventKind, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := ctrl.RecordDirectEvent(context.Background(), "judge-1", 0, 0, corner, kind); err != nil {
			t.Fatalf("direct event: %v", err)
		}
	}
}

func TestController_Validation(t *testing.T) {
	Convey("Admitting a match validates rules and seats", t, func() {
		Convey("A match with zero rounds is rejected", func() {
			m := testMatch(0)
			_, err := match.New(m, officials())
			So(err, ShouldWrap, match.ErrValidation)
		})

		Convey("Duplicate assessor positions are rejected", func() {
			m := testMatch(3)
			seats := officials()
			seats[1].Position = seats[0].Position
			_, err := match.New(m, seats)
			So(err, ShouldWrap, match.ErrValidation)
		})

		Convey("A score value without an event kind is rejected", func() {
			m := testMatch(3)
			m.Rules.ScoreValues = []int{1, 3}
			_, err := match.New(m, officials())
			So(err, ShouldWrap, match.ErrValidation)
		})
	})
}

func TestController_Transitions(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pending match", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))

		Convey("When applying START", func() {
			out, err := ctrl.Apply(ctx, model.ActionStart)
			So(err, ShouldBeNil)

			Convey("Then the match is in progress on round 1", func() {
				So(out.Match.Status, ShouldEqual, model.MatchInProgress)
				So(out.Match.CurrentRound, ShouldEqual, 1)
				So(out.Round.Kind, ShouldEqual, model.RoundMain)
				So(out.Round.Status, ShouldEqual, model.RoundInProgress)
				So(out.Match.StartedAt, ShouldNotBeNil)
			})

			Convey("And a second START is an invalid transition", func() {
				_, err := ctrl.Apply(ctx, model.ActionStart)
				So(err, ShouldWrap, match.ErrInvalidTransition)
			})
		})

		Convey("When applying PAUSE before START", func() {
			_, err := ctrl.Apply(ctx, model.ActionPause)
			So(err, ShouldWrap, match.ErrInvalidTransition)
		})

		Convey("When cancelling from PENDING", func() {
			out, err := ctrl.Apply(ctx, model.ActionCancel)
			So(err, ShouldBeNil)
			So(out.Match.Status, ShouldEqual, model.MatchCancelled)

			Convey("Then every further command is rejected", func() {
				for _, action := range []model.ControlAction{
					model.ActionStart, model.ActionPause, model.ActionResume,
					model.ActionEndRound, model.ActionEndMatch, model.ActionCancel,
				} {
					_, err := ctrl.Apply(ctx, action)
					So(err, ShouldWrap, match.ErrInvalidTransition)
				}
			})
		})
	})

	Convey("Given a running match", t, func() {
		ctrl, clock, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)

		Convey("When the clock advances without any command", func() {
			clock.Advance(45 * time.Second)

			Convey("Then Scoreboard reads the remaining time fresh from the timer", func() {
				So(ctrl.Scoreboard().RemainingSeconds, ShouldEqual, 75)
				// The published snapshot is only replaced on a mutation.
				So(ctrl.Snapshot().RemainingSeconds, ShouldEqual, 120)
			})
		})

		Convey("When pausing at remaining=90", func() {
			clock.Advance(30 * time.Second)
			out, err := ctrl.Apply(ctx, model.ActionPause)
			So(err, ShouldBeNil)
			So(out.Match.Status, ShouldEqual, model.MatchPaused)

			Convey("Then remaining time freezes until resume", func() {
				clock.Advance(10 * time.Minute)
				So(ctrl.RefreshSnapshot().RemainingSeconds, ShouldEqual, 90)

				_, err := ctrl.Apply(ctx, model.ActionResume)
				So(err, ShouldBeNil)
				So(ctrl.RefreshSnapshot().RemainingSeconds, ShouldEqual, 90)
			})

			Convey("And RESUME from IN_PROGRESS is rejected", func() {
				_, err := ctrl.Apply(ctx, model.ActionResume)
				So(err, ShouldBeNil)
				_, err = ctrl.Apply(ctx, model.ActionResume)
				So(err, ShouldWrap, match.ErrInvalidTransition)
			})
		})

		Convey("When ending the match from PAUSED", func() {
			_, err := ctrl.Apply(ctx, model.ActionPause)
			So(err, ShouldBeNil)
			out, err := ctrl.Apply(ctx, model.ActionEndMatch)
			So(err, ShouldBeNil)

			Convey("Then the match and its open round are closed", func() {
				So(out.Match.Status, ShouldEqual, model.MatchEnded)
				So(out.Ended, ShouldBeTrue)
				So(out.Match.EndedAt, ShouldNotBeNil)
				rounds := ctrl.Rounds()
				So(rounds[len(rounds)-1].Status, ShouldEqual, model.RoundEnded)
			})
		})
	})
}

func TestController_ContinuationPolicy(t *testing.T) {
	ctx := context.Background()

	Convey("Given a three-round match with one tie-breaker allowed", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)

		Convey("When rounds end 2-1, 1-2, 1-1 (cumulative tie)", func() {
			score(t, ctrl, model.CornerRed, model.EventScorePlus2, 1)
			score(t, ctrl, model.CornerBlue, model.EventScorePlus1, 1)
			out, err := ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)
			So(out.Round.Number, ShouldEqual, 2)
			So(out.Round.Kind, ShouldEqual, model.RoundMain)

			score(t, ctrl, model.CornerRed, model.EventScorePlus1, 1)
			score(t, ctrl, model.CornerBlue, model.EventScorePlus2, 1)
			out, err = ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)
			So(out.Round.Number, ShouldEqual, 3)

			score(t, ctrl, model.CornerRed, model.EventScorePlus1, 1)
			score(t, ctrl, model.CornerBlue, model.EventScorePlus1, 1)
			out, err = ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)

			Convey("Then a TIE_BREAKER round opens", func() {
				So(out.Ended, ShouldBeFalse)
				So(out.Round.Number, ShouldEqual, 4)
				So(out.Round.Kind, ShouldEqual, model.RoundTieBreaker)
			})

			Convey("And a still-tied tie-breaker ends with an unresolved-tie signal", func() {
				final, err := ctrl.Apply(ctx, model.ActionEndRound)
				So(err, ShouldBeNil)
				So(final.Ended, ShouldBeTrue)
				So(final.UnresolvedTie, ShouldBeTrue)
				So(final.TieBreakRule, ShouldEqual, "weigh_in_weight")
				So(final.Match.Status, ShouldEqual, model.MatchEnded)
			})

			Convey("And a decisive tie-breaker ends the match normally", func() {
				score(t, ctrl, model.CornerRed, model.EventScorePlus1, 1)
				final, err := ctrl.Apply(ctx, model.ActionEndRound)
				So(err, ShouldBeNil)
				So(final.Ended, ShouldBeTrue)
				So(final.UnresolvedTie, ShouldBeFalse)
			})
		})

		Convey("When the final round ends with unequal scores", func() {
			score(t, ctrl, model.CornerRed, model.EventScorePlus2, 2)
			_, err := ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)
			_, err = ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)
			out, err := ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)

			Convey("Then the match ends without a tie-breaker", func() {
				So(out.Ended, ShouldBeTrue)
				So(out.UnresolvedTie, ShouldBeFalse)
				So(len(ctrl.Rounds()), ShouldEqual, 3)
			})
		})
	})

	Convey("Given tie-breakers are not allowed", t, func() {
		m := testMatch(1)
		m.Rules.AllowExtraRound = false
		ctrl, _, _ := newController(t, m)
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)

		Convey("When the only round ends scoreless", func() {
			out, err := ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)

			Convey("Then the match ends tied with the rule surfaced", func() {
				So(out.Ended, ShouldBeTrue)
				So(out.UnresolvedTie, ShouldBeTrue)
			})
		})
	})
}

func TestController_TimerExpiry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running match", t, func() {
		ctrl, clock, _ := newController(t, testMatch(2))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)

		Convey("When round 1 runs out", func() {
			clock.Advance(120 * time.Second)

			Convey("Then the round auto-ends exactly once and round 2 starts", func() {
				rounds := ctrl.Rounds()
				So(rounds, ShouldHaveLength, 2)
				So(rounds[0].Status, ShouldEqual, model.RoundEnded)
				So(rounds[0].ActualDurationSeconds, ShouldEqual, 120)
				So(rounds[1].Status, ShouldEqual, model.RoundInProgress)
				So(ctrl.Match().CurrentRound, ShouldEqual, 2)
			})
		})

		Convey("When the round is ended manually before expiry", func() {
			clock.Advance(50 * time.Second)
			_, err := ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)
			So(ctrl.Match().CurrentRound, ShouldEqual, 2)

			Convey("Then the stale round-1 deadline is a no-op", func() {
				clock.Advance(70 * time.Second)
				So(ctrl.Match().CurrentRound, ShouldEqual, 2)
				So(ctrl.Rounds(), ShouldHaveLength, 2)
			})
		})

		Convey("When the match is paused across the deadline", func() {
			clock.Advance(100 * time.Second)
			_, err := ctrl.Apply(ctx, model.ActionPause)
			So(err, ShouldBeNil)
			clock.Advance(10 * time.Minute)

			Convey("Then the round stays open until resumed time elapses", func() {
				So(ctrl.Match().CurrentRound, ShouldEqual, 1)
				_, err := ctrl.Apply(ctx, model.ActionResume)
				So(err, ShouldBeNil)
				clock.Advance(20 * time.Second)
				So(ctrl.Match().CurrentRound, ShouldEqual, 2)
			})
		})
	})
}

func TestController_Persistence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a controller with a recording sink", t, func() {
		ctrl, _, rec := newController(t, testMatch(2))

		Convey("When a match runs through a round", func() {
			_, err := ctrl.Apply(ctx, model.ActionStart)
			So(err, ShouldBeNil)
			score(t, ctrl, model.CornerRed, model.EventScorePlus1, 1)
			_, err = ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)

			Convey("Then rounds, match state and events were enqueued", func() {
				// Round 1 save on open and close, round 2 save on open.
				So(rec.count(store.OpSaveRound), ShouldEqual, 3)
				So(rec.count(store.OpAppendEvent), ShouldEqual, 1)
				So(rec.count(store.OpSaveMatch), ShouldBeGreaterThanOrEqualTo, 2)
			})
		})
	})
}

func TestController_Rehydrate(t *testing.T) {
	Convey("Given persisted records of an interrupted match", t, func() {
		m := testMatch(3)
		m.Status = model.MatchInProgress
		m.CurrentRound = 2
		rounds := []model.Round{
			{MatchID: "m-1", Number: 1, Kind: model.RoundMain, Status: model.RoundEnded, ScheduledDurationSeconds: 120, ActualDurationSeconds: 120, RedScore: 2, BlueScore: 1},
			{MatchID: "m-1", Number: 2, Kind: model.RoundMain, Status: model.RoundInProgress, ScheduledDurationSeconds: 120, ActualDurationSeconds: 45},
		}
		events := []model.ScoreEvent{
			{ID: "e1", MatchID: "m-1", Round: 1, TimestampInRound: 10, Corner: model.CornerRed, Kind: model.EventScorePlus2, Seq: 1},
			{ID: "e2", MatchID: "m-1", Round: 1, TimestampInRound: 70, Corner: model.CornerBlue, Kind: model.EventScorePlus1, Seq: 2},
		}

		Convey("When rehydrating the controller", func() {
			clock := timer.NewManualClock(time.Unix(20_000, 0))
			ctrl, err := match.Rehydrate(m, officials(), rounds, events, match.WithClock(clock))
			So(err, ShouldBeNil)

			Convey("Then the match resumes paused with scores restored", func() {
				So(ctrl.Match().Status, ShouldEqual, model.MatchPaused)
				snap := ctrl.Snapshot()
				So(snap.Red.Score, ShouldEqual, 2)
				So(snap.Blue.Score, ShouldEqual, 1)
				So(snap.RemainingSeconds, ShouldEqual, 75)
			})

			Convey("And new events continue the ledger sequence", func() {
				_, err := ctrl.Apply(context.Background(), model.ActionResume)
				So(err, ShouldBeNil)
				ev, err := ctrl.RecordDirectEvent(context.Background(), "judge-1", 0, 0, model.CornerRed, model.EventScorePlus1)
				So(err, ShouldBeNil)
				So(ev.Seq, ShouldEqual, 3)
			})
		})
	})
}
