// Package model contains the core entities of the match engine.
package model

import "fmt"

// MatchStatus is the lifecycle state of a match.
type MatchStatus string

const (
	MatchPending    MatchStatus = "PENDING"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchPaused     MatchStatus = "PAUSED"
	MatchEnded      MatchStatus = "ENDED"
	MatchCancelled  MatchStatus = "CANCELLED"
)

// Terminal reports whether no further commands are legal.
func (s MatchStatus) Terminal() bool {
	return s == MatchEnded || s == MatchCancelled
}

// IsValid reports whether s is a known status.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchPending, MatchInProgress, MatchPaused, MatchEnded, MatchCancelled:
		return true
	}
	return false
}

// RoundKind distinguishes scheduled rounds from tie-breakers.
type RoundKind string

const (
	RoundMain       RoundKind = "MAIN"
	RoundTieBreaker RoundKind = "TIE_BREAKER"
)

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundPending    RoundStatus = "PENDING"
	RoundInProgress RoundStatus = "IN_PROGRESS"
	RoundEnded      RoundStatus = "ENDED"
)

// Corner identifies one of the two competitors in a match.
type Corner string

const (
	CornerRed  Corner = "RED"
	CornerBlue Corner = "BLUE"
)

// IsValid reports whether c is a known corner.
func (c Corner) IsValid() bool {
	return c == CornerRed || c == CornerBlue
}

// Other returns the opposing corner.
func (c Corner) Other() Corner {
	if c == CornerRed {
		return CornerBlue
	}
	return CornerRed
}

// ParseCorner converts a wire value to a Corner.
func ParseCorner(s string) (Corner, error) {
	c := Corner(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown corner %q", s)
	}
	return c, nil
}

// EventKind is the closed set of scoring and administrative events.
type EventKind string

const (
	EventScorePlus1     EventKind = "SCORE_PLUS_1"
	EventScorePlus2     EventKind = "SCORE_PLUS_2"
	EventScoreMinus1    EventKind = "SCORE_MINUS_1"
	EventMedicalTimeout EventKind = "MEDICAL_TIMEOUT"
	EventWarning        EventKind = "WARNING"
)

// IsValid reports whether k is a known event kind.
func (k EventKind) IsValid() bool {
	switch k {
	case EventScorePlus1, EventScorePlus2, EventScoreMinus1, EventMedicalTimeout, EventWarning:
		return true
	}
	return false
}

// PointsDelta returns the score contribution of the event kind.
// Administrative events contribute zero.
func (k EventKind) PointsDelta() int {
	switch k {
	case EventScorePlus1:
		return 1
	case EventScorePlus2:
		return 2
	case EventScoreMinus1:
		return -1
	default:
		return 0
	}
}

// ParseEventKind converts a wire value to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// EventKindForScoreValue maps an accepted consensus value to its event kind.
func EventKindForScoreValue(v int) (EventKind, error) {
	switch v {
	case 1:
		return EventScorePlus1, nil
	case 2:
		return EventScorePlus2, nil
	default:
		return "", fmt.Errorf("no event kind for score value %d", v)
	}
}

// OfficialRole separates voting assessors from recording judges.
type OfficialRole string

const (
	RoleAssessor OfficialRole = "ASSESSOR"
	RoleJudge    OfficialRole = "JUDGE"
)

// IsValid reports whether r is a known role.
func (r OfficialRole) IsValid() bool {
	return r == RoleAssessor || r == RoleJudge
}

// ControlAction is the closed set of match control commands.
type ControlAction string

const (
	ActionStart    ControlAction = "START"
	ActionPause    ControlAction = "PAUSE"
	ActionResume   ControlAction = "RESUME"
	ActionEndRound ControlAction = "END_ROUND"
	ActionEndMatch ControlAction = "END_MATCH"
	ActionCancel   ControlAction = "CANCEL"
)

// ParseControlAction converts a wire value to a ControlAction.
func ParseControlAction(s string) (ControlAction, error) {
	a := ControlAction(s)
	switch a {
	case ActionStart, ActionPause, ActionResume, ActionEndRound, ActionEndMatch, ActionCancel:
		return a, nil
	}
	return "", fmt.Errorf("unknown control action %q", s)
}
