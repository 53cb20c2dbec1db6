// Package ledger provides the append-only scoring record of a single match.
//
// Entries are ordered by (round, timestampInRound, seq) ascending; seq is a
// per-match monotonic counter assigned on append, which makes ordering
// deterministic for events recorded within the same second.
package ledger

import "github.com/tatami-systems/tatami/internal/domain/model"

// Ledger holds the ordered score events of one match. It is not safe for
// concurrent use; the owning match controller serializes access.
type Ledger struct {
	matchID string
	events  []model.ScoreEvent
	seq     uint64
}

// New creates an empty ledger for the given match.
func New(matchID string) *Ledger {
	return &Ledger{matchID: matchID}
}

// Rehydrate rebuilds a ledger from previously persisted events. The events
// must already carry their sequence numbers; the internal counter resumes
// after the highest one seen.
func Rehydrate(matchID string, events []model.ScoreEvent) *Ledger {
	l := New(matchID)
	l.events = make([]model.ScoreEvent, len(events))
	copy(l.events, events)
	for _, e := range l.events {
		if e.Seq > l.seq {
			l.seq = e.Seq
		}
	}
	return l
}

// Append assigns the next sequence number to e, inserts it at its ordering
// position, and returns the stored event.
func (l *Ledger) Append(e model.ScoreEvent) model.ScoreEvent {
	l.seq++
	e.Seq = l.seq
	e.MatchID = l.matchID

	// Events arrive mostly in order; walk back from the tail to find the
	// insertion point for the rare out-of-order timestamp.
	i := len(l.events)
	for i > 0 && less(e, l.events[i-1]) {
		i--
	}
	l.events = append(l.events, model.ScoreEvent{})
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = e
	return e
}

func less(a, b model.ScoreEvent) bool {
	if a.Round != b.Round {
		return a.Round < b.Round
	}
	if a.TimestampInRound != b.TimestampInRound {
		return a.TimestampInRound < b.TimestampInRound
	}
	return a.Seq < b.Seq
}

// Len returns the number of recorded events.
func (l *Ledger) Len() int {
	return len(l.events)
}

// LastSeq returns the sequence number of the most recently appended event.
func (l *Ledger) LastSeq() uint64 {
	return l.seq
}

// Ascending returns all events in ledger order.
func (l *Ledger) Ascending() []model.ScoreEvent {
	out := make([]model.ScoreEvent, len(l.events))
	copy(out, l.events)
	return out
}

// Descending returns all events in reverse ledger order.
func (l *Ledger) Descending() []model.ScoreEvent {
	out := make([]model.ScoreEvent, len(l.events))
	for i, e := range l.events {
		out[len(l.events)-1-i] = e
	}
	return out
}

// Since returns events with a sequence number strictly greater than seq, in
// ledger order. Incremental consumers poll with their last seen sequence.
func (l *Ledger) Since(seq uint64) []model.ScoreEvent {
	var out []model.ScoreEvent
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// ForRound returns the events recorded for the given round, in ledger order.
func (l *Ledger) ForRound(round int) []model.ScoreEvent {
	var out []model.ScoreEvent
	for _, e := range l.events {
		if e.Round == round {
			out = append(out, e)
		}
	}
	return out
}
