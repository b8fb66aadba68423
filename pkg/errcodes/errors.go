package errcodes

import (
	"fmt"
)

type Error struct {
	Message string
	Code    string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.Message == err.Message &&
		te.Code == err.Code
}

// NotFound returns an error indicating the given resource doesn't exist. A
// vanished file-system path and an absent catalog record both use this so
// callers can branch on the condition rather than the source.
func NotFound(resource string) error {
	return &Error{
		resource + " not found.",
		"not_found",
	}
}

// Invariant returns an error for a violated precondition, like a nil required
// argument or an empty identifier. These signal programmer error and are never
// retried.
func Invariant(msg string) error {
	return &Error{
		msg,
		"invariant_violation",
	}
}

// ProviderFailure returns an error indicating a metadata provider did not
// complete. Retry policy belongs to the caller.
func ProviderFailure(name string) error {
	return &Error{
		fmt.Sprintf("Provider %q failed.", name),
		"provider_failure",
	}
}

// Conflict returns an error indicating a write raced with another and lost.
func Conflict(resource string) error {
	return &Error{
		resource + " was modified concurrently.",
		"conflict",
	}
}
