package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Stable error codes returned to callers.
const (
	CodeMissingCredential   = "MISSING_CREDENTIAL"
	CodeMalformedCredential = "MALFORMED_CREDENTIAL"
	CodeInvalidCredential   = "INVALID_CREDENTIAL"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeDuplicate           = "DUPLICATE_APPLICATION"
	CodeSelfApplication     = "SELF_APPLICATION_FORBIDDEN"
	CodeAlreadyWithdrawn    = "ALREADY_WITHDRAWN"
	CodeTerminalState       = "TERMINAL_STATE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeValidation          = "VALIDATION_FAILED"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Wrap returns a copy of base carrying err as its cause. errors.Is(result, base) holds.
func Wrap(base *DomainError, err error) error {
	return &wrapped{DomainError: DomainError{
		Code:       base.Code,
		Message:    base.Message,
		HTTPStatus: base.HTTPStatus,
		Details:    base.Details,
		Err:        err,
	}, base: base}
}

type wrapped struct {
	DomainError
	base *DomainError
}

func (w *wrapped) Is(target error) bool {
	return target == error(w.base)
}

func (w *wrapped) As(target any) bool {
	if de, ok := target.(**DomainError); ok {
		*de = &w.DomainError
		return true
	}
	return false
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewUnauthenticated reports a missing or unusable credential. The message is
// fixed so that verification detail never reaches the caller.
func NewUnauthenticated(code string) error {
	return NewDomainError(code, "unauthorized", http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewUpstreamUnavailable(message string) error {
	return NewDomainError(CodeUpstreamUnavailable, message, http.StatusServiceUnavailable, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}
