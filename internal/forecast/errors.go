package forecast

import "errors"

var (
	// ErrInsufficientData is returned when a series is too short to fit.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrFitFailed is returned when the least-squares system cannot be solved.
	ErrFitFailed = errors.New("model fit failed")
	// ErrModelNotFound is returned by a ModelStore when no artifact exists for a key.
	ErrModelNotFound = errors.New("model not found")
)
