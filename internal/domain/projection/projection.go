// Package projection folds the event ledger into the displayable scoreboard.
//
// The fold is pure: re-running it over the full ledger always reproduces the
// same scoreboard as incremental recomputation.
package projection

import (
	"time"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// Tally is the folded per-corner state of a match.
type Tally struct {
	Red  model.CornerSummary
	Blue model.CornerSummary
}

// Fold replays events into a tally. Running corner scores are clamped at
// zero after every event, so a deduction can never drive a score negative.
func Fold(events []model.ScoreEvent) Tally {
	var t Tally
	for _, e := range events {
		side := &t.Red
		if e.Corner == model.CornerBlue {
			side = &t.Blue
		}
		switch e.Kind {
		case model.EventWarning:
			side.Warnings++
		case model.EventMedicalTimeout:
			side.MedicalTimeouts++
		default:
			side.Score += e.Kind.PointsDelta()
			if side.Score < 0 {
				side.Score = 0
			}
		}
	}
	return t
}

// FoldRound replays only the given round's events, used for the score
// snapshot recorded when a round closes.
func FoldRound(events []model.ScoreEvent, round int) Tally {
	var scoped []model.ScoreEvent
	for _, e := range events {
		if e.Round == round {
			scoped = append(scoped, e)
		}
	}
	return Fold(scoped)
}

// Build assembles the full scoreboard snapshot from the match state, the
// remaining round time, and the ledger contents.
func Build(m *model.Match, remaining time.Duration, events []model.ScoreEvent, now time.Time) model.ScoreboardSnapshot {
	t := Fold(events)
	return model.ScoreboardSnapshot{
		MatchID:          m.ID,
		CurrentRound:     m.CurrentRound,
		TotalRounds:      m.Rules.TotalRounds,
		RemainingSeconds: int(remaining.Round(time.Second) / time.Second),
		Status:           m.Status,
		Red:              t.Red,
		Blue:             t.Blue,
		UpdatedAt:        now,
	}
}
