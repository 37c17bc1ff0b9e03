package domain

import (
	"errors"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeItemNotFound       ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeItemUnavailable    ErrorCode = "ITEM_UNAVAILABLE"
	ErrCodeNothingToBill      ErrorCode = "NOTHING_TO_BILL"
	ErrCodeSessionEnded       ErrorCode = "SESSION_ENDED"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeOrderLocked        ErrorCode = "ORDER_LOCKED"
	ErrCodeEditWindowExpired  ErrorCode = "EDIT_WINDOW_EXPIRED"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is the typed failure every service returns; handlers turn it into the response
// envelope unchanged.
type Error struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
	Cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, message string, status int, details map[string]any) *Error {
	return &Error{Code: code, Message: message, StatusCode: status, Details: details}
}

func ValidationError(message string, details map[string]any) *Error {
	return newError(ErrCodeValidation, message, http.StatusBadRequest, details)
}

func UnauthorizedError(message string) *Error {
	return newError(ErrCodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func ForbiddenError(message string) *Error {
	return newError(ErrCodeForbidden, message, http.StatusForbidden, nil)
}

func NotFoundError(message string) *Error {
	return newError(ErrCodeNotFound, message, http.StatusNotFound, nil)
}

func StateError(code ErrorCode, message string, details map[string]any) *Error {
	status := http.StatusConflict
	switch code {
	case ErrCodeItemNotFound, ErrCodeItemUnavailable, ErrCodeNothingToBill:
		status = http.StatusUnprocessableEntity
	case ErrCodeEditWindowExpired:
		status = http.StatusForbidden
	}
	return newError(code, message, status, details)
}

func InvalidCredentialsError() *Error {
	return newError(ErrCodeInvalidCredentials, "Invalid phone or PIN", http.StatusUnauthorized, nil)
}

func ConflictError(message string) *Error {
	return newError(ErrCodeConflict, message, http.StatusConflict, map[string]any{"retryable": true})
}

// InternalError hides cause from callers; it is still reachable through errors.Unwrap for
// logging.
func InternalError(cause error) *Error {
	e := newError(ErrCodeInternal, "Internal server error", http.StatusInternalServerError, nil)
	e.Cause = cause
	return e
}

// AsError converts any error into *Error, wrapping unknown failures as internal errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, ErrRecordNotFound) {
		return NotFoundError("Not found")
	}
	return InternalError(err)
}

func HasCode(err error, code ErrorCode) bool {
	var de *Error
	return errors.As(err, &de) && de.Code == code
}

var (
	// ErrRecordNotFound is returned by stores when a lookup matches no row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrScopeChanged is returned by the bill writer when fewer orders were claimed than
	// selected, meaning another writer billed part of the scope first.
	ErrScopeChanged = errors.New("billing scope changed concurrently")
	// ErrStaleWrite is returned when a conditional update matched no row because the row
	// changed after it was read.
	ErrStaleWrite = errors.New("row changed since read")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)
