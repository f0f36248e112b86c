package engine

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode categorizes engine errors.
type RuntimeErrorCode string

const (
	// ErrCodeSubscriptionClosed: the live query was already closed or
	// never existed.
	ErrCodeSubscriptionClosed RuntimeErrorCode = "SUBSCRIPTION_CLOSED"

	// ErrCodeEngineStopped: the engine no longer accepts writes or
	// subscriptions.
	ErrCodeEngineStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeBackendFailure: the storage backend returned an error.
	ErrCodeBackendFailure RuntimeErrorCode = "BACKEND_FAILURE"
)

// RuntimeError is an error raised by the engine rather than by query
// compilation.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string

	// SubscriptionID identifies the live query involved, if any.
	SubscriptionID string

	// Collection identifies the collection involved, if any.
	Collection string

	// Err is the underlying cause (backend errors).
	Err error
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.SubscriptionID != "":
		msg += fmt.Sprintf(" (subscription=%s)", e.SubscriptionID)
	case e.Collection != "":
		msg += fmt.Sprintf(" (collection=%s)", e.Collection)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsStopped reports whether err is an ENGINE_STOPPED error.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeEngineStopped)
}

// IsSubscriptionClosed reports whether err is a SUBSCRIPTION_CLOSED error.
func IsSubscriptionClosed(err error) bool {
	return hasCode(err, ErrCodeSubscriptionClosed)
}

// IsBackendFailure reports whether err wraps a backend error.
func IsBackendFailure(err error) bool {
	return hasCode(err, ErrCodeBackendFailure)
}

func stoppedError() *RuntimeError {
	return &RuntimeError{Code: ErrCodeEngineStopped, Message: "engine is stopped"}
}

func backendError(op, collection string, err error) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeBackendFailure,
		Message:    op + " failed",
		Collection: collection,
		Err:        err,
	}
}
