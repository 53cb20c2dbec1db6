package model

import "time"

// Competitor holds display metadata for one corner of a match.
type Competitor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
	Bib  string `json:"bib"`
}

// Rules captures the per-match scoring configuration. Matches are admitted
// with their rules already resolved; the engine never reaches back into
// competition configuration.
type Rules struct {
	TotalRounds          int    `json:"total_rounds"`
	RoundDurationSeconds int    `json:"round_duration_seconds"`
	AllowExtraRound      bool   `json:"allow_extra_round"`
	MaxExtraRounds       int    `json:"max_extra_rounds"`
	TieBreakRule         string `json:"tie_break_rule"`
	ScoreValues          []int  `json:"score_values"`
}

// AllowsScoreValue reports whether v is a castable vote value.
func (r Rules) AllowsScoreValue(v int) bool {
	for _, allowed := range r.ScoreValues {
		if v == allowed {
			return true
		}
	}
	return false
}

// Match is the aggregate the engine drives. It is created by the tournament
// scheduling system and mutated exclusively by the match controller.
type Match struct {
	ID            string     `json:"id"`
	CompetitionID string     `json:"competition_id"`
	WeightClassID string     `json:"weight_class_id"`
	FieldID       string     `json:"field_id"`
	Red           Competitor `json:"red"`
	Blue          Competitor `json:"blue"`
	Rules         Rules      `json:"rules"`

	Status       MatchStatus `json:"status"`
	CurrentRound int         `json:"current_round"` // 1-based; 0 before START
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
	Deleted      bool        `json:"deleted"`
}

// CompetitorFor returns the competitor fighting out of the given corner.
func (m *Match) CompetitorFor(c Corner) Competitor {
	if c == CornerRed {
		return m.Red
	}
	return m.Blue
}

// Round is one scored period of a match. Immutable once ended except for the
// closing score snapshot recorded at that moment.
type Round struct {
	MatchID                  string      `json:"match_id"`
	Number                   int         `json:"number"`
	Kind                     RoundKind   `json:"kind"`
	Status                   RoundStatus `json:"status"`
	ScheduledDurationSeconds int         `json:"scheduled_duration_seconds"`
	ActualDurationSeconds    int         `json:"actual_duration_seconds"`
	StartedAt                *time.Time  `json:"started_at,omitempty"`
	EndedAt                  *time.Time  `json:"ended_at,omitempty"`
	RedScore                 int         `json:"red_score"`
	BlueScore                int         `json:"blue_score"`
}

// AssessorAssignment seats an official on a match. Positions are unique per
// match; role decides whether the official votes or records directly.
type AssessorAssignment struct {
	MatchID  string       `json:"match_id"`
	UserID   string       `json:"user_id"`
	Position int          `json:"position"`
	Role     OfficialRole `json:"role"`
	Notes    string       `json:"notes,omitempty"`
}
