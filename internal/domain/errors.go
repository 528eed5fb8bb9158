package domain

import "errors"

// ErrorKind classifies an error for callers and for HTTP mapping.
type ErrorKind string

const (
	// KindValidation means the client input is bad and can be fixed by the user.
	KindValidation ErrorKind = "VALIDATION"
	// KindConflict means a concurrent actor won a race (e.g. seat already taken).
	KindConflict ErrorKind = "CONFLICT"
	// KindPrecondition means an illegal state transition was attempted. A caller bug.
	KindPrecondition ErrorKind = "PRECONDITION"
	// KindRetryable means a network or timeout failure that is safe to retry
	// after state reconciliation.
	KindRetryable ErrorKind = "RETRYABLE"
	// KindFailed means the remote party confirmed a rejection. Terminal for the attempt.
	KindFailed ErrorKind = "FAILED"
	// KindNotFound means the resource is already gone.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindInternal is the fallback for unclassified errors.
	KindInternal ErrorKind = "INTERNAL"
)

// Error is a tagged error carried across the checkout subsystem.
// Collaborator errors are surfaced unmodified; the orchestrator adds no
// silent recovery beyond what the saga rules allow.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to match two tagged errors on kind and message,
// so sentinel *Error values behave like classic sentinel errors.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// E constructs a tagged error.
func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an underlying error.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain, defaulting to INTERNAL.
func KindOf(err error) ErrorKind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindInternal
}
