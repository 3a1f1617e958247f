package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrForbiddenOrigin = errors.New("origin not allowed")
	ErrNotFound        = errors.New("not found")
)

// opError ties a handler operation to an error kind and its cause.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.kind == nil:
		return fmt.Sprintf("%s: %v", e.op, e.err)
	case e.err == nil:
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	default:
		return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.err)
	}
}

func (e *opError) Unwrap() []error {
	var out []error
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}

// NewKind returns an error of kind for op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// WrapKind returns err annotated with op and kind.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}
