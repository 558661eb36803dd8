// Package location turns raw position fixes into LocationContext snapshots.
//
// A Source delivers fixes, either on demand or as a stream. The Tracker keeps
// the newest one, derives whether the traveler is moving, and fills in the
// city and timezone through a Geocoder and a Zoner. Geocoding is best effort:
// a failed lookup leaves the city empty and never fails the fix.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abelbrown/companion/internal/model"
)

// Fix is one raw reading from a positioning source.
type Fix struct {
	Coordinates model.Coordinates `json:"coordinates"`
	Accuracy    float64           `json:"accuracy"`
	Heading     *float64          `json:"heading,omitempty"`
	Speed       *float64          `json:"speed,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Source is a positioning source.
type Source interface {
	// Current returns a single fix.
	Current(ctx context.Context) (Fix, error)
	// Watch streams fixes until ctx is done. Both channels are closed when
	// the stream ends.
	Watch(ctx context.Context) (<-chan Fix, <-chan error)
}

// Code is the closed set of source failures.
type Code string

const (
	CodePermissionDenied    Code = "permission_denied"
	CodePositionUnavailable Code = "position_unavailable"
	CodeTimeout             Code = "timeout"
	CodeUnsupported         Code = "unsupported"
)

// Error is a source failure with its code.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "location: " + string(e.Code)
	}
	return fmt.Sprintf("location: %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, location.ErrTimeout).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrPermissionDenied    = &Error{Code: CodePermissionDenied}
	ErrPositionUnavailable = &Error{Code: CodePositionUnavailable}
	ErrTimeout             = &Error{Code: CodeTimeout}
	ErrUnsupported         = &Error{Code: CodeUnsupported}
)

// Wrap attaches a code to err.
func Wrap(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code of err. Context deadlines map to timeout; anything
// else unknown maps to position_unavailable.
func CodeOf(err error) Code {
	var e *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &e):
		return e.Code
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	default:
		return CodePositionUnavailable
	}
}

// Fatal reports whether a source error means watching cannot continue.
func Fatal(err error) bool {
	c := CodeOf(err)
	return c == CodePermissionDenied || c == CodeUnsupported
}

// Place is a reverse-geocoded position.
type Place struct {
	City        string
	CountryCode string
}

// Geocoder resolves coordinates to a place.
type Geocoder interface {
	Reverse(ctx context.Context, c model.Coordinates) (Place, error)
}

// Zoner resolves coordinates to an IANA timezone name, or "".
type Zoner interface {
	Zone(c model.Coordinates) string
}
