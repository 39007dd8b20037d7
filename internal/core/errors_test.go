// AngelaMos | 2026
// errors_test.go

package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("load: %w", ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"conflict", ErrConflict, http.StatusConflict, "CONFLICT"},
		{"forbidden", ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"expired", fmt.Errorf("verify: %w", ErrTokenExpired), http.StatusUnauthorized, "TOKEN_EXPIRED"},
		{"issuer", ErrTokenIssuer, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"revoked", ErrTokenRevoked, http.StatusUnauthorized, "TOKEN_REVOKED"},
		{"locked", ErrAccountLocked, http.StatusUnauthorized, "ACCOUNT_LOCKED"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appErr := ToAppError(tt.err)
			assert.Equal(t, tt.status, appErr.StatusCode)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestToAppErrorKeepsTypedErrors(t *testing.T) {
	original := ValidationError("bad", FieldError{Field: "title", Message: "is required"})
	wrapped := fmt.Errorf("submit: %w", original)

	appErr := ToAppError(wrapped)

	assert.Same(t, original, appErr)
	assert.ErrorIs(t, wrapped, ErrInvalidInput)
	assert.Len(t, appErr.Fields, 1)
}
