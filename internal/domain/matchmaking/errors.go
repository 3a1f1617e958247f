package matchmaking

import (
	"errors"
	"fmt"
)

// Sentinel kinds returned by the engine. Test with errors.Is.
var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Error carries the failed operation, its kind and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

func wrapError(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the sentinel kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrInvalidRequest, ErrUnauthorized, ErrBackendUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
