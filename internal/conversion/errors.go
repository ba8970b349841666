package conversion

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to tool callers.
type Kind string

// Failure kinds reported in the error_kind field of failed responses.
const (
	KindNotFound               Kind = "NotFound"
	KindAuthenticationRequired Kind = "AuthenticationRequired"
	KindAuthenticationFailed   Kind = "AuthenticationFailed"
	KindConversionFailure      Kind = "ConversionFailure"
	KindNotificationDelivery   Kind = "NotificationDeliveryFailure"
	KindInvalidArgument        Kind = "InvalidArgument"
	KindInternal               Kind = "Internal"
)

// Error is a classified failure with a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// NotFound reports a missing input reference.
func NotFound(ref string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("PDF file not found: %s", ref)}
}

// AuthenticationRequired reports a protected input supplied without a credential.
func AuthenticationRequired(ref string) *Error {
	return &Error{
		Kind:    KindAuthenticationRequired,
		Message: fmt.Sprintf("PDF is password protected, a password is required: %s", ref),
	}
}

// AuthenticationFailed reports a protected input whose credential was rejected.
func AuthenticationFailed(ref string, err error) *Error {
	return &Error{
		Kind:    KindAuthenticationFailed,
		Message: fmt.Sprintf("password rejected for %s", ref),
		Err:     err,
	}
}

// ConversionFailure wraps an error raised by the conversion routine.
func ConversionFailure(err error) *Error {
	return &Error{Kind: KindConversionFailure, Message: "conversion failed", Err: err}
}

// InvalidArgument reports a malformed request field.
func InvalidArgument(msg string, err error) *Error {
	return &Error{Kind: KindInvalidArgument, Message: msg, Err: err}
}

// KindOf returns the Kind carried by err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable message carried by err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
