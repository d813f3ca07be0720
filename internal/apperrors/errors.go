// Package apperrors provides the four-kind structured error used across the
// actor fleet: validation, not_found, uniqueness, and system.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a closed enum of the error kinds the dispatch layer distinguishes.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUniqueness Kind = "uniqueness"
	KindSystem     Kind = "system"
)

func (k Kind) httpStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUniqueness:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError is the structured error every actor operation returns on
// failure, carrying a kind, a human message, and an optional wrapped cause.
type ServiceError struct {
	Kind       Kind
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a key/value pair to the error's Details map.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New builds a ServiceError of the given kind.
func New(kind Kind, message string) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, HTTPStatus: kind.httpStatus()}
}

// Wrap builds a ServiceError of the given kind, wrapping err.
func Wrap(kind Kind, message string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, HTTPStatus: kind.httpStatus(), Err: err}
}

// Validation builds a validation-kind error naming the offending field.
func Validation(field, reason string) *ServiceError {
	return New(KindValidation, "invalid input").
		WithDetails("field", field).
		WithDetails("reason", reason)
}

// NotFound builds a not_found-kind error for the given resource/id pair.
func NotFound(resource, id string) *ServiceError {
	return New(KindNotFound, resource+" not found").WithDetails("id", id)
}

// AlreadyExists builds a uniqueness-kind error.
func AlreadyExists(resource, key string) *ServiceError {
	return New(KindUniqueness, resource+" already exists").WithDetails("key", key)
}

// Internal builds a system-kind error wrapping the underlying cause.
func Internal(operation string, err error) *ServiceError {
	return Wrap(KindSystem, operation+" failed", err).WithDetails("operation", operation)
}

// Is reports whether err is a ServiceError of the given kind.
func Is(err error, kind Kind) bool {
	var se *ServiceError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == kind
}
