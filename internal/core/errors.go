// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrConflict           = errors.New("resource state conflict")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrTokenAudience      = errors.New("token audience mismatch")
	ErrTokenIssuer        = errors.New("token issuer mismatch")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError carries everything the response mapper needs. Err is kept for
// errors.Is matching and server-side logging only.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
	Fields     []FieldError
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(err error, message string, status int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: status,
		Code:       code,
	}
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func ValidationError(message string, fields ...FieldError) *AppError {
	return &AppError{
		Err:        ErrInvalidInput,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Code:       "VALIDATION_ERROR",
		Fields:     fields,
	}
}

func NotFoundError(resource string) *AppError {
	return NewAppError(
		ErrNotFound,
		resource+" not found",
		http.StatusNotFound,
		"NOT_FOUND",
	)
}

func ConflictError(message string) *AppError {
	return NewAppError(ErrConflict, message, http.StatusConflict, "CONFLICT")
}

func DuplicateError(field string) *AppError {
	return NewAppError(
		ErrDuplicateKey,
		field+" already exists",
		http.StatusConflict,
		"DUPLICATE",
	)
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(
		ErrUnauthorized,
		message,
		http.StatusUnauthorized,
		"AUTH_REQUIRED",
	)
}

func AuthFailedError(message string) *AppError {
	if message == "" {
		message = "authentication failed"
	}
	return NewAppError(
		ErrUnauthorized,
		message,
		http.StatusUnauthorized,
		"AUTH_FAILED",
	)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "insufficient permissions"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func TokenExpiredError() *AppError {
	return NewAppError(
		ErrTokenExpired,
		"token has expired",
		http.StatusUnauthorized,
		"TOKEN_EXPIRED",
	)
}

func TokenInvalidError() *AppError {
	return NewAppError(
		ErrTokenInvalid,
		"token is invalid",
		http.StatusUnauthorized,
		"TOKEN_INVALID",
	)
}

func TokenRevokedError() *AppError {
	return NewAppError(
		ErrTokenRevoked,
		"token has been revoked",
		http.StatusUnauthorized,
		"TOKEN_REVOKED",
	)
}

func AccountLockedError() *AppError {
	return NewAppError(
		ErrAccountLocked,
		"account is temporarily locked",
		http.StatusUnauthorized,
		"ACCOUNT_LOCKED",
	)
}

func AccountDeactivatedError() *AppError {
	return NewAppError(
		ErrAccountDeactivated,
		"account has been deactivated",
		http.StatusUnauthorized,
		"ACCOUNT_DEACTIVATED",
	)
}

func InternalError(err error) *AppError {
	return NewAppError(
		err,
		"an unexpected error occurred",
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
	)
}

// ToAppError resolves any error into the HTTP taxonomy. Typed AppErrors win;
// otherwise the sentinel chain decides, and anything unknown is internal.
func ToAppError(err error) *AppError {
	if appErr := AsAppError(err); appErr != nil {
		return appErr
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return NotFoundError("resource")
	case errors.Is(err, ErrConflict):
		return ConflictError("resource is not in a state that allows this action")
	case errors.Is(err, ErrDuplicateKey):
		return DuplicateError("resource")
	case errors.Is(err, ErrInvalidInput):
		return ValidationError("invalid input")
	case errors.Is(err, ErrForbidden):
		return ForbiddenError("")
	case errors.Is(err, ErrTokenExpired):
		return TokenExpiredError()
	case errors.Is(err, ErrTokenRevoked):
		return TokenRevokedError()
	case errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrTokenAudience),
		errors.Is(err, ErrTokenIssuer):
		return TokenInvalidError()
	case errors.Is(err, ErrAccountLocked):
		return AccountLockedError()
	case errors.Is(err, ErrAccountDeactivated):
		return AccountDeactivatedError()
	case errors.Is(err, ErrUnauthorized):
		return UnauthorizedError("")
	default:
		return InternalError(err)
	}
}
