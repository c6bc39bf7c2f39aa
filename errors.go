package brisa

import (
	"fmt"
	"net/http"
)

// Kind is a machine-readable error classification used to map an error to
// an HTTP status code and a JSON error envelope.
type Kind string

const (
	KindProtocol            Kind = "protocol_error"
	KindPayloadTooLarge     Kind = "payload_too_large"
	KindHeadersTooLarge     Kind = "headers_too_large"
	KindNotFound            Kind = "not_found"
	KindMethodNotAllowed    Kind = "method_not_allowed"
	KindValidationFailed    Kind = "validation_failed"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindRateLimited         Kind = "rate_limited"
	KindUnknownService      Kind = "unknown_service"
	KindCyclicDependency    Kind = "cyclic_dependency"
	KindServiceConstruction Kind = "service_construction_failed"
	KindHandler             Kind = "handler_error"
	KindQueueFull           Kind = "queue_full"
	KindTimeout             Kind = "timeout"
	KindRouterConflict      Kind = "router_conflict"
)

// Error is the standard typed error surfaced by the pipeline. It carries
// enough information for the dispatcher to build both the HTTP status code
// and the JSON error envelope.
type Error struct {
	Kind    Kind           `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// Cause is the wrapped original error, not serialized.
	Cause error `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an *Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds a formatted *Error.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error that carries an underlying cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetails attaches field-qualified details (used by validation errors)
// and returns the same *Error for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// StatusCode maps a Kind to its corresponding HTTP status code.
func (k Kind) StatusCode() int {
	switch k {
	case KindProtocol:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindHeadersTooLarge:
		return http.StatusRequestHeaderFieldsTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindValidationFailed:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnknownService, KindCyclicDependency, KindServiceConstruction, KindHandler:
		return http.StatusInternalServerError
	case KindQueueFull:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindRouterConflict:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// StatusCode is a convenience accessor on *Error.
func (e *Error) StatusCode() int { return e.Kind.StatusCode() }

// AsError extracts an *Error from an arbitrary error, wrapping unknown
// errors as a generic KindHandler error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return Wrap(KindHandler, err, err.Error())
}

// Body is the JSON shape of an error response body:
// `{"error": <code>, "message": <string>}`.
type Body struct {
	Error   Kind           `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Body renders the response body for this error. In debug mode the message
// includes the underlying cause; in production mode it is generic for
// KindHandler errors to avoid leaking internals.
func (e *Error) Body(debug bool) Body {
	msg := e.Message
	if e.Kind == KindHandler && !debug {
		msg = "internal server error"
	} else if debug && e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return Body{Error: e.Kind, Message: msg, Details: e.Details}
}
