package arrival

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a signal or an intermediate
	// series is too short for the stage that consumes it.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerateSignal is returned when normalization cannot produce a
	// usable reference (all-zero or non-finite extremum weights).
	ErrDegenerateSignal = errors.New("degenerate signal")
)

// Stage names reported in StageError.
const (
	StageExtrema     = "find-extrema"
	StageNormalize   = "normalize"
	StageNoiseRegion = "noise-region"
	StageThreshold   = "threshold"
)

// StageError records which stage rejected a signal and how long it was.
type StageError struct {
	Stage  string
	Length int
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("arrival %s: signal length %d: %v", e.Stage, e.Length, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, length int, err error, format string, args ...interface{}) error {
	if format != "" {
		err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
	return &StageError{Stage: stage, Length: length, Err: err}
}
