// Package simulator drives a live match against a running engine over HTTP:
// it admits a match, issues lifecycle commands, casts assessor votes and
// judge events, and verifies the scoreboard against its own fold of the
// accepted events.
package simulator

import "time"

// Config holds configuration for a simulated match.
type Config struct {
	BaseURL      string        // Base URL of the service
	MatchID      string        // Id of the admitted match; generated when empty
	Rounds       int           // Scheduled rounds
	RoundSeconds int           // Scheduled round duration
	Assessors    int           // Size of the assessor panel
	Exchanges    int           // Scoring exchanges attempted per round
	Timeout      time.Duration // HTTP request timeout
	Seed         int64         // RNG seed; 0 picks one from the clock
	LogFile      string        // Log file for simulator output
	Verbose      bool          // Enable verbose logging
}

// voteResult mirrors the engine's response to a cast vote. Votes maps
// assessor id to the value that assessor saw.
type voteResult struct {
	MatchID        string         `json:"match_id"`
	Round          int            `json:"round"`
	Corner         string         `json:"corner"`
	VoteCount      int            `json:"vote_count"`
	TotalAssessors int            `json:"total_assessors"`
	ScoreAccepted  bool           `json:"score_accepted"`
	Votes          map[string]int `json:"votes"`
	Event          *struct {
		Kind string `json:"kind"`
	} `json:"event"`
}

// controlResult mirrors the engine's response to a control command.
type controlResult struct {
	Match struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		CurrentRound int    `json:"current_round"`
	} `json:"match"`
	Ended         bool   `json:"ended"`
	UnresolvedTie bool   `json:"unresolved_tie"`
	TieBreakRule  string `json:"tie_break_rule"`
}

// scoreboard mirrors the engine's snapshot read shape.
type scoreboard struct {
	MatchID          string `json:"match_id"`
	CurrentRound     int    `json:"current_round"`
	TotalRounds      int    `json:"total_rounds"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Status           string `json:"status"`
	Red              corner `json:"red_corner"`
	Blue             corner `json:"blue_corner"`
}

type corner struct {
	Score           int `json:"score"`
	Warnings        int `json:"warnings"`
	MedicalTimeouts int `json:"medical_timeouts"`
}

// Stats holds simulation statistics.
type Stats struct {
	VotesCast      int
	VotesRejected  int
	ScoresAccepted int
	JudgeEvents    int
	RoundsPlayed   int
	UnresolvedTie  bool
	RedScore       int
	BlueScore      int
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
