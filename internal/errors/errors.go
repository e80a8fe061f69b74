package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound          = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists     = new(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict   = new(ErrCodeVersionConflict, "version conflict")
	ErrValidation        = new(ErrCodeValidation, "validation error")
	ErrInsufficientFunds = new(ErrCodeInsufficientFunds, "insufficient funds")
	ErrPaymentGateway    = new(ErrCodePaymentGateway, "payment gateway error")
	ErrPauseLimitReached = new(ErrCodePauseLimitReached, "pause limit reached")
	ErrMealLocked        = new(ErrCodeMealLocked, "meal locked")
	ErrSlotNotFound      = new(ErrCodeSlotNotFound, "meal slot not found")
	ErrNoAlternative     = new(ErrCodeNoAlternative, "no alternative available")
	ErrStateConflict     = new(ErrCodeStateConflict, "state conflict")
	ErrUnauthorized      = new(ErrCodeUnauthorized, "unauthorized")
	ErrPermissionDenied  = new(ErrCodePermissionDenied, "permission denied")
	ErrDatabase          = new(ErrCodeDatabase, "database error")
	ErrSystem            = new(ErrCodeSystemError, "system error")
	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrNotFound:          http.StatusNotFound,
		ErrSlotNotFound:      http.StatusNotFound,
		ErrAlreadyExists:     http.StatusConflict,
		ErrVersionConflict:   http.StatusConflict,
		ErrStateConflict:     http.StatusConflict,
		ErrPauseLimitReached: http.StatusConflict,
		ErrValidation:        http.StatusBadRequest,
		ErrInsufficientFunds: http.StatusPaymentRequired,
		ErrMealLocked:        http.StatusUnprocessableEntity,
		ErrNoAlternative:     http.StatusUnprocessableEntity,
		ErrPaymentGateway:    http.StatusBadGateway,
		ErrUnauthorized:      http.StatusUnauthorized,
		ErrPermissionDenied:  http.StatusForbidden,
		ErrDatabase:          http.StatusInternalServerError,
		ErrSystem:            http.StatusInternalServerError,
	}
)

const (
	ErrCodeSystemError       = "system_error"
	ErrCodeNotFound          = "not_found"
	ErrCodeAlreadyExists     = "already_exists"
	ErrCodeVersionConflict   = "version_conflict"
	ErrCodeValidation        = "validation_error"
	ErrCodeInsufficientFunds = "insufficient_funds"
	ErrCodePaymentGateway    = "payment_gateway_error"
	ErrCodePauseLimitReached = "pause_limit_reached"
	ErrCodeMealLocked        = "meal_locked"
	ErrCodeSlotNotFound      = "slot_not_found"
	ErrCodeNoAlternative     = "no_alternative_available"
	ErrCodeStateConflict     = "state_conflict"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodePermissionDenied  = "permission_denied"
	ErrCodeDatabase          = "database_error"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, reference error) bool {
	return errors.Is(err, reference)
}

// HintOf returns the user facing hints attached anywhere in the chain
func HintOf(err error) string {
	return errors.FlattenHints(err)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

func IsPaymentGateway(err error) bool {
	return errors.Is(err, ErrPaymentGateway)
}

func IsPauseLimitReached(err error) bool {
	return errors.Is(err, ErrPauseLimitReached)
}

func IsMealLocked(err error) bool {
	return errors.Is(err, ErrMealLocked)
}

func IsSlotNotFound(err error) bool {
	return errors.Is(err, ErrSlotNotFound)
}

func IsNoAlternative(err error) bool {
	return errors.Is(err, ErrNoAlternative)
}

func IsStateConflict(err error) bool {
	return errors.Is(err, ErrStateConflict)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}
