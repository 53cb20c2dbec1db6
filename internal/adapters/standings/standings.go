// Package standings maintains ranked per-competition standings built from
// ended match results.
package standings

import "context"

// Result is one competitor's outcome from a single ended match.
type Result struct {
	CompetitorID string
	Name         string
	Points       int
	Won          bool
}

// Entry represents one row of a competition standings board.
type Entry struct {
	Rank         int
	CompetitorID string
	Name         string
	Points       int
	Wins         int
	Matches      int
}

// Board provides read/write access to competition standings.
type Board interface {
	// RecordResult folds a match result into the competition's board.
	RecordResult(ctx context.Context, competitionID string, result Result) error

	// Rank returns the current row for a competitor.
	// Returns ErrNotFound if the competitor has no recorded results.
	Rank(ctx context.Context, competitionID, competitorID string) (Entry, error)

	// TopN returns the top-N rows ordered by points desc.
	TopN(ctx context.Context, competitionID string, n int) ([]Entry, error)

	// Count returns the number of ranked competitors in a competition.
	Count(ctx context.Context, competitionID string) int
}
