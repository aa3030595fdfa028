package entity

import "errors"

// Code classifies engine failures for transport mapping and logging.
type Code string

const (
	// CodeUnauthenticated means no user is signed in.
	CodeUnauthenticated Code = "unauthenticated"
	// CodeCoupleContextUnavailable means a couple-scoped operation could not
	// resolve the couple, even after a refresh. Recoverable by retrying once
	// pairing completes.
	CodeCoupleContextUnavailable Code = "couple_context_unavailable"
	// CodeForbidden means the actor lacks permission for the transition.
	CodeForbidden Code = "forbidden"
	// CodeNotFound means the entity id does not resolve to a visible record.
	CodeNotFound Code = "not_found"
	// CodeRemoteStoreFailure means the persistence call itself errored; the
	// message carries the store's error verbatim.
	CodeRemoteStoreFailure Code = "remote_store_failure"
	// CodeInvalidArgument means the input failed validation before any state
	// change was attempted.
	CodeInvalidArgument Code = "invalid_argument"
)

// Error is the typed failure returned by every engine entry point. Engine
// operations either succeed or return one of these; they never panic.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func errUnauthenticated() *Error {
	return newError(CodeUnauthenticated, "you must be signed in")
}

func errCoupleContextUnavailable() *Error {
	return newError(CodeCoupleContextUnavailable, "could not confirm your pairing; check your pairing status and try again")
}

// CodeOf extracts the failure code from an error, or "" for non-engine errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
