// Package store defines the persistence gateway the engine writes through
// and the durable record shapes it reads back on recovery.
//
// The engine never blocks live scoring on the gateway: writes are queued as
// Ops and drained out-of-band by the persistence workers.
package store

import (
	"context"
	"fmt"

	"github.com/tatami-systems/tatami/internal/domain/model"
)

// Gateway is the durable storage contract consumed by the engine.
type Gateway interface {
	LoadMatch(ctx context.Context, id string) (*model.Match, error)
	SaveMatch(ctx context.Context, m *model.Match) error

	SaveRound(ctx context.Context, r *model.Round) error
	ListRounds(ctx context.Context, matchID string) ([]model.Round, error)

	AppendEvent(ctx context.Context, e *model.ScoreEvent) error
	ListEvents(ctx context.Context, matchID string) ([]model.ScoreEvent, error)

	SaveSnapshot(ctx context.Context, s *model.ScoreboardSnapshot) error
	LoadSnapshot(ctx context.Context, matchID string) (*model.ScoreboardSnapshot, error)

	SaveAssessorAssignments(ctx context.Context, matchID string, assignments []model.AssessorAssignment) error
	ListAssessorAssignments(ctx context.Context, matchID string) ([]model.AssessorAssignment, error)
}

// OpKind names a persistence operation.
type OpKind string

const (
	OpSaveMatch       OpKind = "save_match"
	OpSaveRound       OpKind = "save_round"
	OpAppendEvent     OpKind = "append_event"
	OpSaveSnapshot    OpKind = "save_snapshot"
	OpSaveAssignments OpKind = "save_assignments"
)

// Op is one queued persistence operation. Exactly one payload field matching
// Kind is set.
type Op struct {
	Kind        OpKind
	MatchID     string
	Match       *model.Match
	Round       *model.Round
	Event       *model.ScoreEvent
	Snapshot    *model.ScoreboardSnapshot
	Assignments []model.AssessorAssignment
}

// Apply executes the operation against the gateway.
func (o Op) Apply(ctx context.Context, g Gateway) error {
	switch o.Kind {
	case OpSaveMatch:
		if o.Match == nil {
			return fmt.Errorf("%s: missing match payload", o.Kind)
		}
		return g.SaveMatch(ctx, o.Match)
	case OpSaveRound:
		if o.Round == nil {
			return fmt.Errorf("%s: missing round payload", o.Kind)
		}
		return g.SaveRound(ctx, o.Round)
	case OpAppendEvent:
		if o.Event == nil {
			return fmt.Errorf("%s: missing event payload", o.Kind)
		}
		return g.AppendEvent(ctx, o.Event)
	case OpSaveSnapshot:
		if o.Snapshot == nil {
			return fmt.Errorf("%s: missing snapshot payload", o.Kind)
		}
		return g.SaveSnapshot(ctx, o.Snapshot)
	case OpSaveAssignments:
		return g.SaveAssessorAssignments(ctx, o.MatchID, o.Assignments)
	default:
		return fmt.Errorf("unknown op kind %q", o.Kind)
	}
}
