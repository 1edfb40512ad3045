package services

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a service error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindConflict
	KindExternal
	KindUnavailable
	KindIntegrity
)

// HTTPStatus maps a kind to its response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. Message is safe to show to clients; Err
// keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrPaymentsDisabled is returned when the gateway has no credentials.
var ErrPaymentsDisabled = &Error{Kind: KindUnavailable, Message: "Payment service is not configured"}

// ErrWebhookNotConfigured is returned for webhook deliveries when no webhook
// secret is set. Unsigned events are never trusted.
var ErrWebhookNotConfigured = &Error{Kind: KindUnavailable, Message: "Payment webhooks are not configured"}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) error {
	return newError(KindValidation, format, args...)
}

func notFoundError(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func forbiddenError(format string, args ...interface{}) error {
	return newError(KindForbidden, format, args...)
}

// conflictError is the state-conflict error: the entity is not in a state
// that permits the requested change.
func conflictError(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

func integrityError(err error, format string, args ...interface{}) error {
	e := newError(KindIntegrity, format, args...)
	e.Err = err
	return e
}

// externalError wraps a gateway failure with reconciliation details.
func externalError(err error, details map[string]interface{}, format string, args ...interface{}) error {
	e := newError(KindExternal, format, args...)
	e.Err = err
	e.Details = details
	return e
}

// KindOf returns the kind of err, KindInternal when it is unclassified.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
