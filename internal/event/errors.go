package event

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures surfaced by the client core.
type ErrorCode string

const (
	// ErrCodeFetchFailed indicates a one-shot read failed. It is never retried.
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"

	// ErrCodeWriteFailed indicates registration, message send, event creation
	// or a profile save failed. Local optimistic state must be rolled back.
	ErrCodeWriteFailed ErrorCode = "WRITE_FAILED"

	// ErrCodeUnauthenticated indicates the operation needs a signed-in viewer.
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"

	// ErrCodeNotRegistered indicates the viewer is not in the event's
	// registered set.
	ErrCodeNotRegistered ErrorCode = "NOT_REGISTERED"

	// ErrCodeInFlight indicates a registration for the same event and viewer
	// is still outstanding.
	ErrCodeInFlight ErrorCode = "IN_FLIGHT"

	// ErrCodeInvalidInput indicates rejected user input.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeSubscriptionClosed indicates a subscription was used after it
	// was unsubscribed.
	ErrCodeSubscriptionClosed ErrorCode = "SUBSCRIPTION_CLOSED"

	// ErrCodeNotFound indicates the requested record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is a categorized failure with the operation that produced it.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the code of a wrapped *Error, or "" if err is not one.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err wraps an *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// FetchFailed wraps a read failure.
func FetchFailed(op string, err error) *Error {
	return &Error{Code: ErrCodeFetchFailed, Op: op, Err: err}
}

// WriteFailed wraps a write failure.
func WriteFailed(op string, err error) *Error {
	return &Error{Code: ErrCodeWriteFailed, Op: op, Err: err}
}

// InvalidInput reports rejected input.
func InvalidInput(op, message string) *Error {
	return &Error{Code: ErrCodeInvalidInput, Op: op, Message: message}
}

// Unauthenticated reports an operation attempted by an anonymous viewer.
func Unauthenticated(op string) *Error {
	return &Error{Code: ErrCodeUnauthenticated, Op: op, Message: "sign in required"}
}

// NotRegistered reports an operation that requires registration.
func NotRegistered(op, eventID string) *Error {
	return &Error{Code: ErrCodeNotRegistered, Op: op, Message: "not registered for event " + eventID}
}
