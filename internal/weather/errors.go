package weather

import (
	"fmt"

	"github.com/AyaRayanx/Electricity-Bill-Calculating-System/internal/apperr"
)

// Kind classifies why a lookup produced no sample.
type Kind int

const (
	// LookupMiss means the location has no known coordinates.
	LookupMiss Kind = iota + 1
	// Transport covers connection failures, timeouts and unreadable bodies.
	Transport
	// Status means the service answered with a non-200 status.
	Status
	// Malformed means the body was not the expected JSON document.
	Malformed
	// MissingField means the document lacked a daily temperature or
	// precipitation value.
	MissingField
)

func (k Kind) String() string {
	switch k {
	case LookupMiss:
		return "miss"
	case Transport:
		return "transport"
	case Status:
		return "status"
	case Malformed:
		return "malformed"
	case MissingField:
		return "missing_field"
	default:
		return "unknown"
	}
}

// LookupError is the failure result of a weather lookup. A LookupMiss matches
// apperr.ErrInvalidArgument; every other kind matches
// apperr.ErrUpstreamUnavailable.
type LookupError struct {
	Kind       Kind
	Location   string
	Year       int
	Month      int
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	where := e.Location
	if where == "" {
		where = "coordinates"
	}
	msg := fmt.Sprintf("weather %s for %s %d-%02d", e.Kind, where, e.Year, e.Month)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LookupError) Unwrap() error { return e.Err }

func (e *LookupError) Is(target error) bool {
	if e.Kind == LookupMiss {
		return target == apperr.ErrInvalidArgument
	}
	return target == apperr.ErrUpstreamUnavailable
}
