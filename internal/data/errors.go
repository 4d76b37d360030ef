package data

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	FetchFailed      ErrorKind = "FETCH_FAILED"
	CreateFailed     ErrorKind = "CREATE_FAILED"
	UpdateFailed     ErrorKind = "UPDATE_FAILED"
	ValidationFailed ErrorKind = "VALIDATION_FAILED"
	NotFound         ErrorKind = "NOT_FOUND"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// Error is the failure recorded in State.Err and returned to callers.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == NotFound
	case ErrValidation:
		return e.Kind == ValidationFailed
	}
	return false
}

func newError(kind ErrorKind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}
