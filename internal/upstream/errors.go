package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers network failures, timeouts, 5xx, 429 and
	// malformed responses. Callers fall back to cached data.
	ErrUnavailable = errors.New("upstream: unavailable")
	// ErrRejected is a 4xx the provider returned for a request it understood.
	// It is never papered over with cached data.
	ErrRejected = errors.New("upstream: rejected")
	// ErrNotFound is a 404 on a single-resource read.
	ErrNotFound = errors.New("upstream: not found")
)

// Error carries the failing operation and HTTP status alongside its kind.
type Error struct {
	Op         string
	StatusCode int
	Kind       error
	Err        error
}

func (e *Error) Error() string {
	msg := e.Kind.Error() + ": " + e.Op
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func unavailable(op string, status int, err error) error {
	return &Error{Op: op, StatusCode: status, Kind: ErrUnavailable, Err: err}
}

func rejected(op string, status int, err error) error {
	return &Error{Op: op, StatusCode: status, Kind: ErrRejected, Err: err}
}

// IsUnavailable reports whether err should trigger a cache fallback.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
