package model

import "time"

// CornerSummary is the per-corner slice of a scoreboard snapshot.
type CornerSummary struct {
	Score           int `json:"score"`
	Warnings        int `json:"warnings"`
	MedicalTimeouts int `json:"medical_timeouts"`
}

// ScoreboardSnapshot is the derived display state of a match. It is a pure
// projection of the event ledger plus timer and lifecycle state, recomputed
// on every accepted event and published as an immutable value so readers
// never contend with the match writer.
type ScoreboardSnapshot struct {
	MatchID          string        `json:"match_id"`
	CurrentRound     int           `json:"current_round"`
	TotalRounds      int           `json:"total_rounds"`
	RemainingSeconds int           `json:"remaining_seconds"`
	Status           MatchStatus   `json:"status"`
	Red              CornerSummary `json:"red_corner"`
	Blue             CornerSummary `json:"blue_corner"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
