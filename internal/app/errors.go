package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrMatchExists   = errors.New("match already exists")
	ErrMatchNotFound = errors.New("match not found")
	ErrBackpressure  = errors.New("persistence queue full")
	ErrNotStarted    = errors.New("service not started")
)
