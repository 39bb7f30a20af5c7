package voice

import "errors"

var (
	// ErrInvalidInput indicates a missing guild or user id.
	ErrInvalidInput = errors.New("invalid voice input")
	// ErrNegativeDuration indicates a close whose leave time precedes its join time.
	ErrNegativeDuration = errors.New("negative session duration")
	// ErrNoStats indicates the member has never been tracked.
	ErrNoStats = errors.New("no voice stats")
)
