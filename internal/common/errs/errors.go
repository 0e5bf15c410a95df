// Package errs holds the typed errors shared by the reporting features.
// Every error carries the HTTP status and machine code the API layer renders.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidState = "INVALID_STATE"
	CodePermission   = "PERMISSION_DENIED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeDataSource   = "DATA_SOURCE_ERROR"
)

// AppError is implemented by every error in this package.
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
}

func (e *BaseError) Error() string   { return e.Message }
func (e *BaseError) HTTPStatus() int { return e.StatusCode }
func (e *BaseError) Code() string    { return e.ErrorCode }

// ValidationError rejects malformed input before any state change.
type ValidationError struct {
	BaseError
	Field string `json:"field,omitempty"`
}

func Validation(field, format string, args ...any) *ValidationError {
	msg := fmt.Sprintf(format, args...)
	if field != "" {
		msg = fmt.Sprintf("%s: %s", field, msg)
	}
	return &ValidationError{
		BaseError: BaseError{Message: msg, StatusCode: http.StatusBadRequest, ErrorCode: CodeValidation},
		Field:     field,
	}
}

// Missing is the common "required field" validation error.
func Missing(field string) *ValidationError {
	return Validation(field, "is required")
}

type InvalidStateError struct {
	BaseError
	State string `json:"state,omitempty"`
}

func InvalidState(state, format string, args ...any) *InvalidStateError {
	return &InvalidStateError{
		BaseError: BaseError{Message: fmt.Sprintf(format, args...), StatusCode: http.StatusConflict, ErrorCode: CodeInvalidState},
		State:     state,
	}
}

type PermissionError struct {
	BaseError
	Action   string `json:"action"`
	Resource string `json:"resource"`
}

func Permission(action, resource string) *PermissionError {
	return &PermissionError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("permission denied: cannot %s %s", action, resource),
			StatusCode: http.StatusForbidden,
			ErrorCode:  CodePermission,
		},
		Action:   action,
		Resource: resource,
	}
}

type NotFoundError struct {
	BaseError
	Resource string `json:"resource"`
}

func NotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{Message: fmt.Sprintf("%s %s not found", resource, id), StatusCode: http.StatusNotFound, ErrorCode: CodeNotFound},
		Resource:  resource,
	}
}

// ConflictError signals a stale optimistic-concurrency version.
type ConflictError struct {
	BaseError
}

func Conflict(format string, args ...any) *ConflictError {
	return &ConflictError{BaseError{Message: fmt.Sprintf(format, args...), StatusCode: http.StatusConflict, ErrorCode: CodeConflict}}
}

// DataSourceError wraps a failure raised while fetching component data.
type DataSourceError struct {
	BaseError
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func DataSource(source string, err error) *DataSourceError {
	return &DataSourceError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("data source %q: %v", source, err),
			StatusCode: http.StatusBadGateway,
			ErrorCode:  CodeDataSource,
		},
		Source: source,
		Err:    err,
	}
}

func (e *DataSourceError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsDataSource(err error) bool {
	var target *DataSourceError
	return errors.As(err, &target)
}

// HTTPStatus maps any error to a response status, 500 for untyped errors.
func HTTPStatus(err error) int {
	var app AppError
	if errors.As(err, &app) {
		return app.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Body renders err the way controllers return it to clients.
func Body(err error) map[string]any {
	body := map[string]any{"error": err.Error()}
	var app AppError
	if errors.As(err, &app) {
		body["code"] = app.Code()
	}
	var v *ValidationError
	if errors.As(err, &v) && v.Field != "" {
		body["field"] = v.Field
	}
	return body
}
