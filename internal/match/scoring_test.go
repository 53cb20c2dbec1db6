package match_test

import (
	"context"
	"testing"
	"time"

	"github.com/tatami-systems/tatami/internal/domain/consensus"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/match"
	. "github.com/smartystreets/goconvey/convey"
)

func TestController_CastVote(t *testing.T) {
	ctx := context.Background()

	Convey("Given five assessors watching a running match", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)

		Convey("When A, B and C vote 1, 1, 2 for red", func() {
			res, err := ctrl.CastVote(ctx, "a", model.CornerRed, 1)
			So(err, ShouldBeNil)
			So(res.ScoreAccepted, ShouldBeFalse)
			So(res.VoteCount, ShouldEqual, 1)
			So(res.TotalAssessors, ShouldEqual, 5)

			res, err = ctrl.CastVote(ctx, "b", model.CornerRed, 1)
			So(err, ShouldBeNil)
			So(res.ScoreAccepted, ShouldBeFalse)

			res, err = ctrl.CastVote(ctx, "c", model.CornerRed, 2)
			So(err, ShouldBeNil)
			So(res.ScoreAccepted, ShouldBeFalse)
			So(ctrl.OpenVoteWindows(), ShouldEqual, 1)

			Convey("And D votes 1, reaching the 3-of-5 majority", func() {
				res, err = ctrl.CastVote(ctx, "d", model.CornerRed, 1)
				So(err, ShouldBeNil)

				Convey("Then a score event is produced listing the agreeing assessors", func() {
					So(res.ScoreAccepted, ShouldBeTrue)
					So(res.Event, ShouldNotBeNil)
					So(res.Event.Kind, ShouldEqual, model.EventScorePlus1)
					So(res.Event.Corner, ShouldEqual, model.CornerRed)
					So(res.Event.AgreeingAssessorIDs, ShouldResemble, []string{"a", "b", "d"})
					So(ctrl.Snapshot().Red.Score, ShouldEqual, 1)
				})

				Convey("And E's late vote lands in the closed window", func() {
					_, err := ctrl.CastVote(ctx, "e", model.CornerRed, 1)
					So(err, ShouldWrap, consensus.ErrWindowClosed)
				})

				Convey("And clearing the window lets a fresh exchange open", func() {
					So(ctrl.ClearVoteWindow(ctx, model.CornerRed), ShouldBeNil)
					res, err := ctrl.CastVote(ctx, "e", model.CornerRed, 2)
					So(err, ShouldBeNil)
					So(res.VoteCount, ShouldEqual, 1)
					So(res.ScoreAccepted, ShouldBeFalse)
				})
			})
		})

		Convey("When votes split 2/2/1 across values", func() {
			_, err := ctrl.CastVote(ctx, "a", model.CornerBlue, 1)
			So(err, ShouldBeNil)
			_, err = ctrl.CastVote(ctx, "b", model.CornerBlue, 1)
			So(err, ShouldBeNil)
			_, err = ctrl.CastVote(ctx, "c", model.CornerBlue, 2)
			So(err, ShouldBeNil)
			_, err = ctrl.CastVote(ctx, "d", model.CornerBlue, 2)
			So(err, ShouldBeNil)
			res, err := ctrl.CastVote(ctx, "e", model.CornerBlue, 2)
			So(err, ShouldBeNil)

			Convey("Then the window resolves only when one value reaches majority", func() {
				So(res.ScoreAccepted, ShouldBeTrue)
				So(res.Event.Kind, ShouldEqual, model.EventScorePlus2)
				So(ctrl.Snapshot().Blue.Score, ShouldEqual, 2)
			})
		})

		Convey("When an assessor changes their vote before resolution", func() {
			_, err := ctrl.CastVote(ctx, "a", model.CornerRed, 2)
			So(err, ShouldBeNil)
			_, err = ctrl.CastVote(ctx, "b", model.CornerRed, 1)
			So(err, ShouldBeNil)
			_, err = ctrl.CastVote(ctx, "a", model.CornerRed, 1)
			So(err, ShouldBeNil)
			res, err := ctrl.CastVote(ctx, "c", model.CornerRed, 1)
			So(err, ShouldBeNil)

			Convey("Then only the latest ballot per assessor counts", func() {
				So(res.ScoreAccepted, ShouldBeTrue)
				So(res.Event.AgreeingAssessorIDs, ShouldResemble, []string{"a", "b", "c"})
			})
		})

		Convey("When someone outside the assessor panel votes", func() {
			_, err := ctrl.CastVote(ctx, "stranger", model.CornerRed, 1)
			So(err, ShouldWrap, consensus.ErrNotAssigned)

			Convey("And the judge seat cannot vote either", func() {
				_, err := ctrl.CastVote(ctx, "judge-1", model.CornerRed, 1)
				So(err, ShouldWrap, consensus.ErrNotAssigned)
			})
		})

		Convey("When a vote carries a score outside the ruleset", func() {
			_, err := ctrl.CastVote(ctx, "a", model.CornerRed, 7)
			So(err, ShouldWrap, consensus.ErrInvalidScoreValue)
		})
	})

	Convey("Given a match that is not running", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))

		Convey("Votes before START are rejected", func() {
			_, err := ctrl.CastVote(ctx, "a", model.CornerRed, 1)
			So(err, ShouldWrap, consensus.ErrWindowClosed)
		})

		Convey("Votes while paused are rejected", func() {
			_, err := ctrl.Apply(ctx, model.ActionStart)
			So(err, ShouldBeNil)
			_, err = ctrl.Apply(ctx, model.ActionPause)
			So(err, ShouldBeNil)
			_, err = ctrl.CastVote(ctx, "a", model.CornerRed, 1)
			So(err, ShouldWrap, consensus.ErrWindowClosed)
		})
	})

	Convey("Given pending votes when a round ends", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)
		_, err = ctrl.CastVote(ctx, "a", model.CornerRed, 1)
		So(err, ShouldBeNil)
		_, err = ctrl.Apply(ctx, model.ActionEndRound)
		So(err, ShouldBeNil)

		Convey("Then the unresolved window is discarded without scoring", func() {
			So(ctrl.OpenVoteWindows(), ShouldEqual, 0)
			So(ctrl.Snapshot().Red.Score, ShouldEqual, 0)

			Convey("And round 2 opens a fresh window for the same corner", func() {
				res, err := ctrl.CastVote(ctx, "a", model.CornerRed, 1)
				So(err, ShouldBeNil)
				So(res.Round, ShouldEqual, 2)
				So(res.VoteCount, ShouldEqual, 1)
			})
		})
	})
}

func TestController_DirectEvents(t *testing.T) {
	ctx := context.Background()

	Convey("Given a running match", t, func() {
		ctrl, clock, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)

		Convey("When the judge records a warning mid-round", func() {
			clock.Advance(42 * time.Second)
			ev, err := ctrl.RecordDirectEvent(ctx, "judge-1", 0, 0, model.CornerBlue, model.EventWarning)
			So(err, ShouldBeNil)

			Convey("Then the event lands on the live round at the live clock", func() {
				So(ev.Round, ShouldEqual, 1)
				So(ev.TimestampInRound, ShouldEqual, 42)
				So(ev.RecordingJudgeID, ShouldEqual, "judge-1")
				So(ctrl.Snapshot().Blue.Warnings, ShouldEqual, 1)
			})
		})

		Convey("When the judge corrects a past round explicitly", func() {
			_, err := ctrl.Apply(ctx, model.ActionEndRound)
			So(err, ShouldBeNil)
			ev, err := ctrl.RecordDirectEvent(ctx, "judge-1", 1, 30, model.CornerRed, model.EventScoreMinus1)
			So(err, ShouldBeNil)

			Convey("Then the event is attributed to that round", func() {
				So(ev.Round, ShouldEqual, 1)
				So(ev.TimestampInRound, ShouldEqual, 30)
			})

			Convey("And a round that never happened is rejected", func() {
				_, err := ctrl.RecordDirectEvent(ctx, "judge-1", 5, 0, model.CornerRed, model.EventWarning)
				So(err, ShouldWrap, match.ErrRoundNotFound)
			})
		})

		Convey("When an assessor tries to record a direct event", func() {
			_, err := ctrl.RecordDirectEvent(ctx, "a", 0, 0, model.CornerRed, model.EventWarning)
			So(err, ShouldWrap, consensus.ErrNotAssigned)
		})

		Convey("When penalties would push a score below zero", func() {
			for i := 0; i < 3; i++ {
				_, err := ctrl.RecordDirectEvent(ctx, "judge-1", 0, 0, model.CornerRed, model.EventScoreMinus1)
				So(err, ShouldBeNil)
			}

			Convey("Then the projected score clamps at zero", func() {
				So(ctrl.Snapshot().Red.Score, ShouldEqual, 0)
			})
		})

		Convey("When the match is paused", func() {
			_, err := ctrl.Apply(ctx, model.ActionPause)
			So(err, ShouldBeNil)

			Convey("Then the judge can still record corrections", func() {
				_, err := ctrl.RecordDirectEvent(ctx, "judge-1", 0, 0, model.CornerRed, model.EventWarning)
				So(err, ShouldBeNil)
			})
		})
	})

	Convey("Given an ended match", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)
		_, err = ctrl.Apply(ctx, model.ActionEndMatch)
		So(err, ShouldBeNil)

		Convey("Direct events are rejected", func() {
			_, err := ctrl.RecordDirectEvent(ctx, "judge-1", 1, 0, model.CornerRed, model.EventWarning)
			So(err, ShouldWrap, match.ErrInvalidTransition)
		})
	})
}

func TestController_EventFeed(t *testing.T) {
	ctx := context.Background()

	Convey("Given a match with a handful of events", t, func() {
		ctrl, _, _ := newController(t, testMatch(3))
		_, err := ctrl.Apply(ctx, model.ActionStart)
		So(err, ShouldBeNil)
		score(t, ctrl, model.CornerRed, model.EventScorePlus1, 2)
		score(t, ctrl, model.CornerBlue, model.EventScorePlus2, 1)

		Convey("The feed is sequenced in arrival order", func() {
			events := ctrl.Events(false, 0)
			So(events, ShouldHaveLength, 3)
			So(events[0].Seq, ShouldEqual, 1)
			So(events[2].Seq, ShouldEqual, 3)
		})

		Convey("A since cursor returns only newer events", func() {
			events := ctrl.Events(false, 2)
			So(events, ShouldHaveLength, 1)
			So(events[0].Seq, ShouldEqual, 3)
		})

		Convey("Descending order puts the newest first", func() {
			events := ctrl.Events(true, 0)
			So(events[0].Seq, ShouldEqual, 3)
		})
	})
}
