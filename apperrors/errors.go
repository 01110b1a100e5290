// Package apperrors defines the error taxonomy shared by every layer of the invoice access API.
// Each Kind maps to exactly one HTTP status and one stable code string.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindInvalidCredential
	KindForbidden
	KindNotFound
	KindInvalidArgument
	KindBackendUnavailable
	KindConfiguration
)

var kindInfo = map[Kind]struct {
	status int
	code   string
}{
	KindInternal:           {http.StatusInternalServerError, "INTERNAL"},
	KindUnauthenticated:    {http.StatusUnauthorized, "UNAUTHENTICATED"},
	KindInvalidCredential:  {http.StatusUnauthorized, "INVALID_CREDENTIAL"},
	KindForbidden:          {http.StatusForbidden, "FORBIDDEN"},
	KindNotFound:           {http.StatusNotFound, "NOT_FOUND"},
	KindInvalidArgument:    {http.StatusBadRequest, "INVALID_ARGUMENT"},
	KindBackendUnavailable: {http.StatusInternalServerError, "BACKEND_UNAVAILABLE"},
	KindConfiguration:      {http.StatusServiceUnavailable, "CONFIGURATION_ERROR"},
}

// Status returns the HTTP status for k.
func (k Kind) Status() int { return kindInfo[k].status }

// Code returns the stable machine-readable code for k.
func (k Kind) Code() string { return kindInfo[k].code }

// Error is a classified failure. Message is safe to show callers; Err is for server logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, apperrors.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == ""
}

// Sentinels for errors.Is comparisons.
var (
	ErrUnauthenticated    = &Error{Kind: KindUnauthenticated}
	ErrInvalidCredential  = &Error{Kind: KindInvalidCredential}
	ErrForbidden          = &Error{Kind: KindForbidden}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrBackendUnavailable = &Error{Kind: KindBackendUnavailable}
	ErrConfiguration      = &Error{Kind: KindConfiguration}
)

func Unauthenticated(msg string) error   { return &Error{Kind: KindUnauthenticated, Message: msg} }
func InvalidCredential(msg string) error { return &Error{Kind: KindInvalidCredential, Message: msg} }
func Forbidden(msg string) error         { return &Error{Kind: KindForbidden, Message: msg} }
func NotFound(msg string) error          { return &Error{Kind: KindNotFound, Message: msg} }
func InvalidArgument(msg string) error   { return &Error{Kind: KindInvalidArgument, Message: msg} }
func Configuration(msg string) error     { return &Error{Kind: KindConfiguration, Message: msg} }

// BackendUnavailable wraps a driver/SDK failure. The caller-facing message never includes err.
func BackendUnavailable(op string, err error) error {
	return &Error{Kind: KindBackendUnavailable, Message: op, Err: err}
}

// KindOf classifies err; unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
