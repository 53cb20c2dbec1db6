package store

import "errors"

// Sentinel kinds for gateway errors.
var (
	ErrNotFound = errors.New("record not found")
)
