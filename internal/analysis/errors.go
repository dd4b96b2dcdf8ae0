package analysis

import "errors"

var (
	// ErrNoData indicates the run collected zero samples.
	ErrNoData = errors.New("analysis: no price data collected")
	// ErrNoFrames indicates samples exist but none could be placed in a frame.
	ErrNoFrames = errors.New("analysis: every sample was skipped, no frames produced")
	// ErrDivision indicates a zero denominator in a percentage computation.
	ErrDivision = errors.New("analysis: division by zero price")
	// ErrFrameMismatch indicates frames that hold more samples than were given.
	ErrFrameMismatch = errors.New("analysis: frames count more samples than were collected")
	// ErrInvalidInterval indicates a non-positive frame width.
	ErrInvalidInterval = errors.New("analysis: frame interval must be positive")
)
