package types

import "errors"

// Domain specific errors for the recommendation flow.
var (
	ErrNotFound          = errors.New("requested item not found")
	ErrBadRequest        = errors.New("bad request")
	ErrGuestNameRequired = errors.New("guest name is required")
	ErrNoRecommendation  = errors.New("no recommendations available")
	ErrInvalidStage      = errors.New("action not allowed in current stage")
	ErrInvalidChoice     = errors.New("invalid room choice")
	ErrInvalidGuess      = errors.New("guess must be between 1 and 10")
)
