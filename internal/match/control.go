package match

import (
	"context"
	"fmt"
	"time"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/internal/domain/projection"
	"github.com/tatami-systems/tatami/pkg/logger"
	"github.com/tatami-systems/tatami/pkg/metrics"
)

// Outcome reports the match state after a control command.
type Outcome struct {
	Match model.Match
	Round *model.Round

	// Ended is set when the command (or its continuation policy) closed
	// the match.
	Ended bool

	// UnresolvedTie signals that all allowed rounds are exhausted with
	// scores still level; TieBreakRule names the external criterion the
	// caller must apply. The engine only reports it.
	UnresolvedTie bool
	TieBreakRule  string
}

// canApply is the transition table for control commands.
func canApply(status model.MatchStatus, action model.ControlAction) bool {
	switch action {
	case model.ActionStart:
		return status == model.MatchPending
	case model.ActionPause:
		return status == model.MatchInProgress
	case model.ActionResume:
		return status == model.MatchPaused
	case model.ActionEndRound:
		return status == model.MatchInProgress
	case model.ActionEndMatch:
		return status == model.MatchInProgress || status == model.MatchPaused
	case model.ActionCancel:
		return !status.Terminal()
	default:
		return false
	}
}

// Apply executes a control command. Commands are processed strictly
// one-at-a-time per match; a command arriving while another is being applied
// waits on the lock.
func (c *Controller) Apply(ctx context.Context, action model.ControlAction) (Outcome, error) {
	start := time.Now()
	defer func() {
		metrics.RecordCommandLatency(string(action), float64(time.Since(start).Milliseconds()))
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !canApply(c.match.Status, action) {
		return Outcome{}, fmt.Errorf("%w: %s not allowed in %s", ErrInvalidTransition, action, c.match.Status)
	}

	var out Outcome
	switch action {
	case model.ActionStart:
		out = c.startLocked(ctx)
	case model.ActionPause:
		out = c.pauseLocked(ctx)
	case model.ActionResume:
		out = c.resumeLocked(ctx)
	case model.ActionEndRound:
		out = c.endRoundLocked(ctx, false)
	case model.ActionEndMatch:
		out = c.endMatchLocked(ctx, false)
	case model.ActionCancel:
		out = c.cancelLocked(ctx)
	}

	c.publishSnapshotLocked()
	return out, nil
}

func (c *Controller) startLocked(ctx context.Context) Outcome {
	now := c.clock.Now()
	c.match.StartedAt = &now
	c.match.Status = model.MatchInProgress
	c.beginRoundLocked(ctx, 1, model.RoundMain)

	c.log.Info(ctx, "match started",
		logger.String("match_id", c.match.ID),
		logger.Int("total_rounds", c.match.Rules.TotalRounds),
	)
	return c.outcomeLocked()
}

func (c *Controller) pauseLocked(ctx context.Context) Outcome {
	c.roundTimer.Pause()
	c.match.Status = model.MatchPaused
	c.persist(store.Op{Kind: store.OpSaveMatch, Match: c.matchCopyLocked()})

	c.log.Info(ctx, "match paused",
		logger.String("match_id", c.match.ID),
		logger.Duration("remaining", c.roundTimer.Remaining()),
	)
	return c.outcomeLocked()
}

func (c *Controller) resumeLocked(ctx context.Context) Outcome {
	c.roundTimer.Resume()
	c.match.Status = model.MatchInProgress
	c.persist(store.Op{Kind: store.OpSaveMatch, Match: c.matchCopyLocked()})

	c.log.Info(ctx, "match resumed", logger.String("match_id", c.match.ID))
	return c.outcomeLocked()
}

// beginRoundLocked creates the next round, starts its timer, and persists
// round and match records.
func (c *Controller) beginRoundLocked(ctx context.Context, number int, kind model.RoundKind) {
	now := c.clock.Now()
	round := model.Round{
		MatchID:                  c.match.ID,
		Number:                   number,
		Kind:                     kind,
		Status:                   model.RoundInProgress,
		ScheduledDurationSeconds: c.match.Rules.RoundDurationSeconds,
		StartedAt:                &now,
	}
	c.rounds = append(c.rounds, round)
	c.match.CurrentRound = number
	c.roundTimer.Start(number, time.Duration(c.match.Rules.RoundDurationSeconds)*time.Second)

	c.persist(store.Op{Kind: store.OpSaveRound, Round: &round})
	c.persist(store.Op{Kind: store.OpSaveMatch, Match: c.matchCopyLocked()})
	metrics.RecordRoundStarted()

	c.log.Info(ctx, "round started",
		logger.String("match_id", c.match.ID),
		logger.Int("round", number),
		logger.String("kind", string(kind)),
	)
}

// endRoundLocked closes the current round, discards its vote windows, and
// applies the continuation policy.
func (c *Controller) endRoundLocked(ctx context.Context, expired bool) Outcome {
	round := c.currentRoundLocked()
	c.closeRoundLocked(ctx, round, expired)

	tally := projection.Fold(c.ledger.Ascending())
	tied := tally.Red.Score == tally.Blue.Score

	switch {
	case c.match.CurrentRound < c.match.Rules.TotalRounds:
		c.beginRoundLocked(ctx, c.match.CurrentRound+1, model.RoundMain)
		return c.outcomeLocked()
	case !tied:
		return c.endMatchLocked(ctx, false)
	case c.match.Rules.AllowExtraRound && c.extraRounds < c.match.Rules.MaxExtraRounds:
		c.extraRounds++
		c.beginRoundLocked(ctx, c.match.CurrentRound+1, model.RoundTieBreaker)
		return c.outcomeLocked()
	default:
		return c.endMatchLocked(ctx, true)
	}
}

// closeRoundLocked finalizes an in-progress round record. The score snapshot
// stored on the round is the fold of that round's events only.
func (c *Controller) closeRoundLocked(ctx context.Context, round *model.Round, expired bool) {
	if round == nil || round.Status != model.RoundInProgress {
		return
	}
	now := c.clock.Now()
	round.Status = model.RoundEnded
	round.EndedAt = &now
	if expired {
		round.ActualDurationSeconds = round.ScheduledDurationSeconds
	} else {
		round.ActualDurationSeconds = int(c.roundTimer.Elapsed() / time.Second)
	}

	tally := projection.FoldRound(c.ledger.Ascending(), round.Number)
	round.RedScore = tally.Red.Score
	round.BlueScore = tally.Blue.Score

	c.roundTimer.Stop()
	c.votes.DiscardRound(round.Number)
	c.persist(store.Op{Kind: store.OpSaveRound, Round: roundCopy(round)})
	metrics.RecordRoundEnded()

	c.log.Info(ctx, "round ended",
		logger.String("match_id", c.match.ID),
		logger.Int("round", round.Number),
		logger.Int("red_score", round.RedScore),
		logger.Int("blue_score", round.BlueScore),
		logger.Bool("expired", expired),
	)
}

func (c *Controller) endMatchLocked(ctx context.Context, unresolvedTie bool) Outcome {
	c.closeRoundLocked(ctx, c.currentRoundLocked(), false)

	now := c.clock.Now()
	c.match.Status = model.MatchEnded
	c.match.EndedAt = &now
	c.roundTimer.Stop()
	c.votes.DiscardAll()
	c.persist(store.Op{Kind: store.OpSaveMatch, Match: c.matchCopyLocked()})
	metrics.RecordMatchEnded()

	out := c.outcomeLocked()
	out.Ended = true
	if unresolvedTie {
		out.UnresolvedTie = true
		out.TieBreakRule = c.match.Rules.TieBreakRule
		metrics.RecordUnresolvedTie()
		c.log.Warn(ctx, "match ended tied; tie-break rule required",
			logger.String("match_id", c.match.ID),
			logger.String("tie_break_rule", out.TieBreakRule),
		)
	} else {
		c.log.Info(ctx, "match ended", logger.String("match_id", c.match.ID))
	}

	if c.onEnd != nil {
		c.publishSnapshotLocked()
		c.onEnd(out.Match, c.snapshot.Load(), unresolvedTie)
	}
	return out
}

func (c *Controller) cancelLocked(ctx context.Context) Outcome {
	c.closeRoundLocked(ctx, c.currentRoundLocked(), false)
	c.match.Status = model.MatchCancelled
	c.roundTimer.Stop()
	c.votes.DiscardAll()
	c.persist(store.Op{Kind: store.OpSaveMatch, Match: c.matchCopyLocked()})
	metrics.RecordMatchCancelled()

	c.log.Info(ctx, "match cancelled", logger.String("match_id", c.match.ID))
	out := c.outcomeLocked()
	return out
}

// onRoundExpired is the timer expiry callback. It re-validates the round
// under the match lock: a manual transition may already have closed it, in
// which case the expiry is stale and does nothing.
func (c *Controller) onRoundExpired(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.match.Status != model.MatchInProgress {
		return
	}
	cur := c.currentRoundLocked()
	if cur == nil || cur.Number != round || cur.Status != model.RoundInProgress {
		return
	}

	metrics.RecordTimerExpiration()
	c.log.Info(expiryCtx, "round expired",
		logger.String("match_id", c.match.ID),
		logger.Int("round", round),
	)
	c.endRoundLocked(expiryCtx, true)
	c.publishSnapshotLocked()
}

func (c *Controller) outcomeLocked() Outcome {
	out := Outcome{Match: *c.match}
	if cur := c.currentRoundLocked(); cur != nil {
		out.Round = roundCopy(cur)
	}
	return out
}

func (c *Controller) matchCopyLocked() *model.Match {
	m := *c.match
	return &m
}

func roundCopy(r *model.Round) *model.Round {
	cp := *r
	return &cp
}
