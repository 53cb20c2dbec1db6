// Package consensus reconciles simultaneous assessor votes into accepted
// scoring decisions.
//
// Each decision lives in a pending vote window keyed by (round, corner).
// Windows are sequential per key: a resolved window blocks further votes
// until it is explicitly cleared, at which point the next first vote opens a
// fresh one. Windows are intentionally non-durable — they are never
// persisted, and after a crash voters simply re-vote.
package consensus

import (
	"sort"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// Engine collects votes for one match. It carries no locking of its own; the
// owning match controller serializes all access.
type Engine struct {
	assessors map[string]struct{}
	rules     model.Rules
	windows   map[windowKey]*window
}

type windowKey struct {
	round  int
	corner model.Corner
}

type window struct {
	votes    map[string]int
	resolved bool
}

// Ballot reports the state of a decision window after a vote.
type Ballot struct {
	Round          int
	Corner         model.Corner
	Value          int
	VoteCount      int
	TotalAssessors int
	Votes          map[string]int

	// Accepted is set when the vote completed a strict majority; the
	// window is then resolved and cleared for the next decision only
	// after an explicit Clear.
	Accepted      bool
	AcceptedValue int
	Agreeing      []string
}

// New builds an engine for a match from its rules and seated officials.
// Only ASSESSOR-role assignments may vote.
func New(rules model.Rules, assignments []model.AssessorAssignment) *Engine {
	assessors := make(map[string]struct{})
	for _, a := range assignments {
		if a.Role == model.RoleAssessor {
			assessors[a.UserID] = struct{}{}
		}
	}
	return &Engine{
		assessors: assessors,
		rules:     rules,
		windows:   make(map[windowKey]*window),
	}
}

// IsAssessor reports whether the user holds an ASSESSOR seat on the match.
func (e *Engine) IsAssessor(userID string) bool {
	_, ok := e.assessors[userID]
	return ok
}

// TotalAssessors returns the number of seated voting assessors.
func (e *Engine) TotalAssessors() int {
	return len(e.assessors)
}

// Threshold returns the vote count required to accept a decision: strictly
// more than half of the seated assessors.
func (e *Engine) Threshold() int {
	return len(e.assessors)/2 + 1
}

// CastVote records or overwrites the assessor's vote in the current window
// for (round, corner), opening the window on the first vote. When any value
// reaches the acceptance threshold the ballot comes back Accepted and the
// window is marked resolved; later votes are rejected with ErrWindowClosed.
func (e *Engine) CastVote(round int, corner model.Corner, assessorID string, value int) (Ballot, error) {
	if _, ok := e.assessors[assessorID]; !ok {
		return Ballot{}, ErrNotAssigned
	}
	if !e.rules.AllowsScoreValue(value) {
		return Ballot{}, ErrInvalidScoreValue
	}

	key := windowKey{round: round, corner: corner}
	w, ok := e.windows[key]
	if ok && w.resolved {
		return Ballot{}, ErrWindowClosed
	}
	if !ok {
		w = &window{votes: make(map[string]int)}
		e.windows[key] = w
	}

	w.votes[assessorID] = value

	ballot := Ballot{
		Round:          round,
		Corner:         corner,
		Value:          value,
		VoteCount:      w.countFor(value),
		TotalAssessors: len(e.assessors),
		Votes:          w.votesCopy(),
	}

	if ballot.VoteCount >= e.Threshold() {
		w.resolved = true
		ballot.Accepted = true
		ballot.AcceptedValue = value
		ballot.Agreeing = w.votersFor(value)
	}
	return ballot, nil
}

// Clear removes the window for (round, corner), discarding any unresolved
// votes. The next vote for the key opens a fresh window. Clearing a key
// without a window is a no-op.
func (e *Engine) Clear(round int, corner model.Corner) {
	delete(e.windows, windowKey{round: round, corner: corner})
}

// DiscardRound drops every window of the given round. Called when a round
// ends; unresolved votes do not carry over.
func (e *Engine) DiscardRound(round int) {
	for key := range e.windows {
		if key.round == round {
			delete(e.windows, key)
		}
	}
}

// DiscardAll drops every window. Called on match cancellation.
func (e *Engine) DiscardAll() {
	e.windows = make(map[windowKey]*window)
}

// OpenWindows returns the number of unresolved windows, for stats.
func (e *Engine) OpenWindows() int {
	n := 0
	for _, w := range e.windows {
		if !w.resolved {
			n++
		}
	}
	return n
}

func (w *window) countFor(value int) int {
	n := 0
	for _, v := range w.votes {
		if v == value {
			n++
		}
	}
	return n
}

func (w *window) votersFor(value int) []string {
	var ids []string
	for id, v := range w.votes {
		if v == value {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (w *window) votesCopy() map[string]int {
	out := make(map[string]int, len(w.votes))
	for id, v := range w.votes {
		out[id] = v
	}
	return out
}
