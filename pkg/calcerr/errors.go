// Package calcerr defines the error kinds reported by formula evaluation,
// variable binding and schedule generation.
package calcerr

import (
	"errors"
	"fmt"
)

// Kind classifies a calculation failure.
type Kind string

const (
	KindInvalidExpression         Kind = "InvalidExpression"
	KindUnboundVariable           Kind = "UnboundVariable"
	KindMissingRequiredVariable   Kind = "MissingRequiredVariable"
	KindInsufficientNumericInputs Kind = "InsufficientNumericInputs"
	KindInvalidTerm               Kind = "InvalidTerm"
	KindInvalidInput              Kind = "InvalidInput"
)

// Sentinels for use with errors.Is. Any *Error of the same Kind matches.
var (
	ErrInvalidExpression         = &Error{Kind: KindInvalidExpression}
	ErrUnboundVariable           = &Error{Kind: KindUnboundVariable}
	ErrMissingRequiredVariable   = &Error{Kind: KindMissingRequiredVariable}
	ErrInsufficientNumericInputs = &Error{Kind: KindInsufficientNumericInputs}
	ErrInvalidTerm               = &Error{Kind: KindInvalidTerm}
	ErrInvalidInput              = &Error{Kind: KindInvalidInput}
)

// Error is a recoverable calculation error. Subject names the offending
// identifier or value so callers can render a specific message.
type Error struct {
	Kind    Kind
	Subject string
	Detail  string
}

// New returns an *Error of the given kind.
func New(kind Kind, subject, detail string) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: detail}
}

// Newf is New with a formatted detail.
func Newf(kind Kind, subject, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Subject != "" && e.Detail != "":
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Subject, e.Detail)
	case e.Subject != "":
		return fmt.Sprintf("%s(%s)", e.Kind, e.Subject)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return string(e.Kind)
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// SubjectOf returns the Subject of the first *Error in err's chain.
func SubjectOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Subject
	}
	return ""
}
