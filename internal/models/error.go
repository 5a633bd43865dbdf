package models

import "net/http"

// AppError is a domain error that knows how it is rendered at the HTTP boundary.
// The package-level values below are the error kinds; NewError derives an error
// of a kind with a caller-facing message, and errors.Is matches it to its kind.
type AppError struct {
	Status  int
	Code    string
	Message string
	kind    *AppError
}

func (e *AppError) Error() string {
	return e.Message
}

// Is reports whether target is this error or the kind it was derived from.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e == t || (e.kind != nil && e.kind == t)
}

// HTTPStatus returns the HTTP status code for the error.
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// ErrorCode returns the machine-readable error code.
func (e *AppError) ErrorCode() string {
	return e.Code
}

// PublicMessage returns the message that is safe to show to the caller.
func (e *AppError) PublicMessage() string {
	return e.Message
}

// NewError creates an error of the given kind with a specific message.
func NewError(kind *AppError, message string) error {
	return &AppError{
		Status:  kind.Status,
		Code:    kind.Code,
		Message: message,
		kind:    kind,
	}
}

// Error kinds
var (
	ErrBadRequest      = &AppError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "bad request"}
	ErrUnauthorized    = &AppError{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "unauthorized"}
	ErrForbidden       = &AppError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "forbidden"}
	ErrNotFound        = &AppError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "resource not found"}
	ErrConflict        = &AppError{Status: http.StatusConflict, Code: "CONFLICT", Message: "resource already exists"}
	ErrTooManyRequests = &AppError{Status: http.StatusTooManyRequests, Code: "TOO_MANY_REQUESTS", Message: "too many requests"}
	ErrInternalServer  = &AppError{Status: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: "internal server error"}
)

// Token verification failures. Both render as Unauthorized.
var (
	ErrTokenExpired = NewError(ErrUnauthorized, "token has expired")
	ErrTokenInvalid = NewError(ErrUnauthorized, "token is invalid")
	ErrInvalidOTP   = NewError(ErrBadRequest, "Invalid or expired OTP")
)
