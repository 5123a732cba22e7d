// Package errdefs defines the error categories shared by the transcription
// pipeline. Every failure returned by this module wraps one (or two) of these
// sentinels; use errors.Is to classify.
package errdefs

import (
	"context"
	"errors"
)

var (
	// ErrInvalidRange reports an empty or inverted note range.
	ErrInvalidRange = errors.New("invalid note range")

	// ErrInvalidParameter reports a probability-like parameter outside (0,1)
	// or another out-of-domain scalar (tempo, hop time).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDimensionMismatch reports inconsistent matrix shapes, a zero frame
	// count or feature arrays of different lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDecode reports that no finite-probability state path exists.
	ErrDecode = errors.New("decode failed")
)

// InUnitInterval reports whether p lies in the open interval (0,1).
// NaN is rejected.
func InUnitInterval(p float64) bool {
	return p > 0 && p < 1
}

// Class returns a short label for the category of err, used for metric
// attributes and log fields. ErrDecode takes precedence over the category it
// may also wrap.
func Class(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrInvalidRange):
		return "invalid_range"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
