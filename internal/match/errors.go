package match

import "errors"

// Sentinel kinds for match command handling, matched with errors.Is.
var (
	// ErrInvalidTransition rejects a command that is not legal in the
	// match's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidation rejects malformed input before any state change.
	ErrValidation = errors.New("validation failed")

	// ErrRoundNotFound rejects an event referencing a round the match
	// never created.
	ErrRoundNotFound = errors.New("round not found")
)
