// Package ioerr classifies engine failures the way the request handler
// needs to respond to them: a message the caller is allowed to see, a
// generic label backed by a logged UUID, or a fatal startup failure.
package ioerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind is the response-shaping category a failure belongs to.
type Kind int

const (
	// KindUser errors are safe to echo back to the client verbatim.
	KindUser Kind = iota
	// KindIO errors are short reads/writes, fallocate/fstat failures,
	// corrupt headers — logged, and reported as a generic "IO error".
	KindIO
	// KindInternal errors are invariant violations and logic errors —
	// logged, and reported as a generic "internal error".
	KindInternal
	// KindFatal errors abort process startup; the supervisor does not
	// restart the process for these (spec §7).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindIO:
		return "io"
	case KindInternal:
		return "internal"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the engine's classified error type. Code is a stable
// machine-readable identifier (e.g. "IncompatibleDataType") matched against
// in tests and, for user errors, surfaced in the response status message.
type Error struct {
	Kind Kind
	Code string
	UUID uuid.UUID // zero value for KindUser: no log correlation needed
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// User constructs a user-visible error: returned in the response's status
// messages verbatim, never logged with a correlation UUID.
func User(code string, err error) *Error {
	return &Error{Kind: KindUser, Code: code, Err: err}
}

// Userf is the formatted-message convenience form of User.
func Userf(code, format string, a ...any) *Error {
	return User(code, fmt.Errorf(format, a...))
}

// IO constructs an I/O error, assigning a correlation UUID so the caller
// can log "IO error, see log, UUID …" and retain the detail internally.
func IO(code string, err error) *Error {
	return &Error{Kind: KindIO, Code: code, UUID: uuid.New(), Err: err}
}

// Internal constructs an internal/invariant-violation error.
func Internal(code string, err error) *Error {
	return &Error{Kind: KindInternal, Code: code, UUID: uuid.New(), Err: err}
}

// Internalf is the formatted-message convenience form of Internal.
func Internalf(code, format string, a ...any) *Error {
	return Internal(code, fmt.Errorf(format, a...))
}

// Fatal constructs a fatal startup error. The caller is expected to log and
// os.Exit with the associated exit code rather than continue serving.
func Fatal(code string, err error) *Error {
	return &Error{Kind: KindFatal, Code: code, UUID: uuid.New(), Err: err}
}

// As extracts the *Error that err is (or wraps), reporting false and a nil
// *Error when there is none; Classify builds on it and treats such an
// unclassified failure as KindInternal, since reaching the boundary
// unclassified is itself an engine bug.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Classify returns the Kind of err, defaulting unclassified errors to
// KindInternal.
func Classify(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
