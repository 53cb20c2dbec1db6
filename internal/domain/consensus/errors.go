package consensus

import "errors"

// Sentinel kinds for vote handling, matched with errors.Is.
var (
	// ErrNotAssigned rejects votes from users without an ASSESSOR seat on
	// the match.
	ErrNotAssigned = errors.New("voter not assigned to match")

	// ErrWindowClosed rejects votes arriving after the decision window
	// resolved or was closed.
	ErrWindowClosed = errors.New("decision window closed")

	// ErrInvalidScoreValue rejects votes outside the match's allowed
	// score values.
	ErrInvalidScoreValue = errors.New("invalid score value")
)
