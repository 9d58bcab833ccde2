package service

import (
	"errors"
	"fmt"

	"github.com/talentshire/assessment-core/internal/model"
	"github.com/talentshire/assessment-core/internal/repository"
)

// ErrorKind classifies failures of the assessment lifecycle.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindConflict     ErrorKind = "CONFLICT"
	KindInvalidState ErrorKind = "INVALID_STATE"
	KindPersistence  ErrorKind = "PERSISTENCE"
)

// Error is the single error type returned by lifecycle operations.
// InvalidState errors carry the observed and the required assignment status.
type Error struct {
	Kind     ErrorKind
	Op       string
	Message  string
	Current  model.AssignmentStatus
	Expected []model.AssignmentStatus
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of Op and Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// Sentinels for errors.Is.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrPersistence  = &Error{Kind: KindPersistence}
)

func notFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

func invalidState(op string, current model.AssignmentStatus, expected ...model.AssignmentStatus) *Error {
	return &Error{
		Kind:     KindInvalidState,
		Op:       op,
		Message:  fmt.Sprintf("assignment is %s", current),
		Current:  current,
		Expected: expected,
	}
}

// storeErr classifies an error raised by a repository or backing store.
// Errors that are already classified pass through unchanged.
func storeErr(op, what string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return notFound(op, "%s not found", what)
	case errors.Is(err, repository.ErrDuplicate):
		return conflict(op, "%s already exists", what)
	default:
		return &Error{Kind: KindPersistence, Op: op, Message: what + " store failure", Err: err}
	}
}
