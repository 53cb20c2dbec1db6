package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/internal/domain/consensus"
	"github.com/tatami-systems/tatami/internal/domain/model"
	"github.com/tatami-systems/tatami/pkg/logger"
	"github.com/tatami-systems/tatami/pkg/metrics"
)

// VoteResult is the caller-facing outcome of a cast vote.
type VoteResult struct {
	MatchID        string
	Round          int
	Corner         model.Corner
	Score          int
	VoteCount      int
	TotalAssessors int
	ScoreAccepted  bool
	Votes          map[string]int

	// Event is the appended score event when the vote completed a
	// majority, nil otherwise.
	Event *model.ScoreEvent
}

// CastVote records an assessor's vote for the current round and corner. When
// the vote completes a strict majority, the accepted decision is appended to
// the ledger as a single score event and reported back.
func (c *Controller) CastVote(ctx context.Context, assessorID string, corner model.Corner, score int) (VoteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.votes.IsAssessor(assessorID) {
		metrics.RecordVoteRejected("not_assigned")
		return VoteResult{}, consensus.ErrNotAssigned
	}
	if c.match.Status != model.MatchInProgress {
		metrics.RecordVoteRejected("window_closed")
		return VoteResult{}, fmt.Errorf("%w: match is %s", consensus.ErrWindowClosed, c.match.Status)
	}

	round := c.match.CurrentRound
	ballot, err := c.votes.CastVote(round, corner, assessorID, score)
	if err != nil {
		switch {
		case errors.Is(err, consensus.ErrWindowClosed):
			metrics.RecordVoteRejected("window_closed")
		case errors.Is(err, consensus.ErrInvalidScoreValue):
			metrics.RecordVoteRejected("invalid_score")
		default:
			metrics.RecordVoteRejected("other")
		}
		return VoteResult{}, err
	}
	metrics.RecordVoteCast()

	result := VoteResult{
		MatchID:        c.match.ID,
		Round:          ballot.Round,
		Corner:         ballot.Corner,
		Score:          ballot.Value,
		VoteCount:      ballot.VoteCount,
		TotalAssessors: ballot.TotalAssessors,
		ScoreAccepted:  ballot.Accepted,
		Votes:          ballot.Votes,
	}

	if !ballot.Accepted {
		c.log.Debug(ctx, "vote recorded",
			logger.String("match_id", c.match.ID),
			logger.Int("round", round),
			logger.String("corner", string(corner)),
			logger.Int("votes_for_value", ballot.VoteCount),
		)
		return result, nil
	}

	kind, err := model.EventKindForScoreValue(ballot.AcceptedValue)
	if err != nil {
		// Allowed score values and event kinds are validated together
		// at admission; reaching this means a bug, not bad input.
		return VoteResult{}, err
	}

	event := c.appendEventLocked(model.ScoreEvent{
		Round:               round,
		TimestampInRound:    int(c.roundTimer.Elapsed() / time.Second),
		Corner:              corner,
		Kind:                kind,
		AgreeingAssessorIDs: ballot.Agreeing,
	})
	result.Event = &event
	metrics.RecordConsensusDecision()

	c.log.Info(ctx, "consensus reached",
		logger.String("match_id", c.match.ID),
		logger.Int("round", round),
		logger.String("corner", string(corner)),
		logger.String("kind", string(kind)),
		logger.Int("agreeing", len(ballot.Agreeing)),
	)
	c.publishSnapshotLocked()
	return result, nil
}

// RecordDirectEvent appends a score event recorded directly by a JUDGE-role
// official, bypassing consensus. Round 0 targets the current round; an
// explicit round must exist on the match. Judges may record while the match
// is paused (medical timeouts happen during pauses).
func (c *Controller) RecordDirectEvent(ctx context.Context, judgeID string, round int, timestampInRound int, corner model.Corner, kind model.EventKind) (model.ScoreEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.judges[judgeID]; !ok {
		return model.ScoreEvent{}, consensus.ErrNotAssigned
	}
	if c.match.Status != model.MatchInProgress && c.match.Status != model.MatchPaused {
		return model.ScoreEvent{}, fmt.Errorf("%w: match is %s", ErrInvalidTransition, c.match.Status)
	}
	if !corner.IsValid() {
		return model.ScoreEvent{}, fmt.Errorf("%w: unknown corner %q", ErrValidation, corner)
	}
	if !kind.IsValid() {
		return model.ScoreEvent{}, fmt.Errorf("%w: unknown event kind %q", ErrValidation, kind)
	}
	if timestampInRound < 0 {
		return model.ScoreEvent{}, fmt.Errorf("%w: timestamp must not be negative", ErrValidation)
	}

	if round == 0 {
		round = c.match.CurrentRound
		timestampInRound = int(c.roundTimer.Elapsed() / time.Second)
	} else if round < 1 || round > c.match.CurrentRound {
		return model.ScoreEvent{}, fmt.Errorf("%w: round %d", ErrRoundNotFound, round)
	}

	event := c.appendEventLocked(model.ScoreEvent{
		Round:            round,
		TimestampInRound: timestampInRound,
		Corner:           corner,
		Kind:             kind,
		RecordingJudgeID: judgeID,
	})
	metrics.RecordDirectEvent()

	c.log.Info(ctx, "direct event recorded",
		logger.String("match_id", c.match.ID),
		logger.Int("round", round),
		logger.String("corner", string(corner)),
		logger.String("kind", string(kind)),
		logger.String("judge_id", judgeID),
	)
	c.publishSnapshotLocked()
	return event, nil
}

// ClearVoteWindow explicitly closes the decision window for the current
// round and corner, discarding unresolved votes; the next vote opens a fresh
// window. Used by the lead official between scoring exchanges.
func (c *Controller) ClearVoteWindow(ctx context.Context, corner model.Corner) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.match.Status != model.MatchInProgress {
		return fmt.Errorf("%w: match is %s", ErrInvalidTransition, c.match.Status)
	}
	if !corner.IsValid() {
		return fmt.Errorf("%w: unknown corner %q", ErrValidation, corner)
	}
	c.votes.Clear(c.match.CurrentRound, corner)

	c.log.Debug(ctx, "vote window cleared",
		logger.String("match_id", c.match.ID),
		logger.Int("round", c.match.CurrentRound),
		logger.String("corner", string(corner)),
	)
	return nil
}

func (c *Controller) appendEventLocked(e model.ScoreEvent) model.ScoreEvent {
	e.ID = uuid.NewString()
	e.CreatedAt = c.clock.Now()
	stored := c.ledger.Append(e)
	c.persist(store.Op{Kind: store.OpAppendEvent, Event: &stored})
	metrics.RecordEventAppended(string(stored.Kind))
	return stored
}
