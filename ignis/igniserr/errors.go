// Package igniserr defines the closed error-kind taxonomy shared by every
// Ignis subsystem and the HTTP/realtime envelopes that surface it.
package igniserr

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Kind is a closed taxonomy of the ways an Ignis operation can fail.
type Kind string

const (
	KindConfigInvalid   Kind = "config-invalid"
	KindNotBound        Kind = "not-bound"
	KindCyclicBinding   Kind = "cyclic-binding"
	KindQueryInvalid    Kind = "query-invalid"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not-found"
	KindConflict        Kind = "conflict"
	KindTransportClosed Kind = "transport-closed"
	KindOverflow        Kind = "overflow"
)

// statusByKind maps every kind to the HTTP status used when the error
// crosses the wire. 4xx for input/auth/not-found, 5xx for configuration,
// cyclic-binding and anything unexpected.
var statusByKind = map[Kind]int{
	KindConfigInvalid:   http.StatusInternalServerError,
	KindNotBound:        http.StatusInternalServerError,
	KindCyclicBinding:   http.StatusInternalServerError,
	KindQueryInvalid:    http.StatusBadRequest,
	KindUnauthenticated: http.StatusUnauthorized,
	KindForbidden:       http.StatusForbidden,
	KindNotFound:        http.StatusNotFound,
	KindConflict:        http.StatusConflict,
	KindTransportClosed: http.StatusInternalServerError,
	KindOverflow:        http.StatusInternalServerError,
}

// Status returns the HTTP status code for a kind, defaulting to 500 for an
// unrecognized kind (which should never happen for a value produced by New).
func (k Kind) Status() int {
	if status, ok := statusByKind[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the typed error value every Ignis component raises. It carries a
// Kind, a human message, and optional structured details (e.g. the list of
// auth strategies tried, or the unknown column name).
type Error struct {
	Kind    Kind
	Message string
	Details any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, igniserr.New(igniserr.KindNotFound, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a Kind-carrying error, wrapped with cockroachdb/errors so a
// stack trace is attached at the point of origin.
func New(kind Kind, message string) error {
	return errors.WithStack(&Error{Kind: kind, Message: message})
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, cause error, message string) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Message: message, cause: cause})
}

// WithDetails attaches structured details (e.g. tried strategies) to an
// *Error produced by New/Newf/Wrap. It is a no-op on any other error type.
func WithDetails(err error, details any) error {
	var e *Error
	if errors.As(err, &e) {
		e.Details = details
	}
	return err
}

// As extracts the *Error from err, following the wrap chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf returns the Kind of err, or "" if err is not (wrapping) an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Envelope is the wire shape mandated for both HTTP and realtime error
// surfaces: {statusCode, message, details?}.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// ToEnvelope converts any error into the user-visible {statusCode, message,
// details?} shape. Errors not produced by this package are treated as
// unexpected internal failures.
func ToEnvelope(err error) Envelope {
	if err == nil {
		return Envelope{StatusCode: http.StatusOK, Message: "success"}
	}
	if e, ok := As(err); ok {
		return Envelope{StatusCode: e.Kind.Status(), Message: e.Message, Details: e.Details}
	}
	return Envelope{StatusCode: http.StatusInternalServerError, Message: err.Error()}
}
