// Package apperr defines the error kinds shared by the billing, weather and
// forecasting packages. Specific errors wrap one of the kinds so callers can
// branch with errors.Is on either.
package apperr

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrInsufficientData    = errors.New("insufficient data")
	ErrDataQuality         = errors.New("data quality")
	ErrUnauthorized        = errors.New("unauthorized")
)

// Kind returns the kind sentinel err wraps, or nil when it wraps none.
func Kind(err error) error {
	for _, k := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrAlreadyExists,
		ErrUpstreamUnavailable,
		ErrInsufficientData,
		ErrDataQuality,
		ErrUnauthorized,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
