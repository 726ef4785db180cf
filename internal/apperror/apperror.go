// Package apperror classifies failures into a few stable kinds so that
// transports can pick a status code without knowing the domain.
package apperror

import "errors"

// Kind is a coarse failure category.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
)

// Error pairs a Kind with a client-safe message. Err usually holds a domain
// sentinel, which stays reachable through errors.Is.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// NotFound reports a missing resource.
func NotFound(msg string, err error) error { return newError(KindNotFound, msg, err) }

// Validation reports input that breaks a domain rule.
func Validation(msg string, err error) error { return newError(KindValidation, msg, err) }

// Conflict reports a request that clashes with current state.
func Conflict(msg string, err error) error { return newError(KindConflict, msg, err) }

// KindOf returns the category of the first *Error in err's chain, or ""
// when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
