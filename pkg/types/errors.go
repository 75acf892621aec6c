package types

import "errors"

var (
	// ErrNoLiveWorkers is returned when the registry is empty or every entry is dead.
	ErrNoLiveWorkers = errors.New("no alive servers")

	// ErrAttemptTimeout is returned when a dispatch attempt exceeds its timeout.
	ErrAttemptTimeout = errors.New("attempt timeout")

	// ErrInvalidBounds is returned for NaN or infinite integration bounds.
	ErrInvalidBounds = errors.New("invalid integration bounds")

	// ErrMalformedMessage is returned when a wire message cannot be parsed.
	ErrMalformedMessage = errors.New("malformed message")
)
