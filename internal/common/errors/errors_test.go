package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	messages []string
}

func (l *captureLogger) Error(msg string, fields map[string]interface{}) {
	l.messages = append(l.messages, msg)
}

func TestConstructors_CategoryAndRetry(t *testing.T) {
	tests := []struct {
		name      string
		err       *StandardError
		code      ErrorCode
		category  string
		retryable bool
	}{
		{"validation", NewValidationError("name", "Required"), ErrCodeValidationFailed, "local", false},
		{"structural", NewStructuralError("address", map[string]string{"city": "Required"}), ErrCodeStructuralInvalid, "local", false},
		{"conflict", NewConflictError("cpf", ""), ErrCodeUniquenessConflict, "remote", true},
		{"persistence", NewPersistenceError("", "", fmt.Errorf("boom")), ErrCodePersistenceFailed, "remote", true},
		{"navigation", NewNavigationError("index 9"), ErrCodeNavigationInvalid, "internal", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.category, GetErrorCategory(tt.err.Code))
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryableErrorCode(tt.err.Code))
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestStandardError_IsAndHasCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewConflictError("cpf", "taken"))

	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeUniquenessConflict}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeValidationFailed}))
	assert.True(t, HasCode(err, ErrCodeUniquenessConflict))

	stdErr, ok := AsStandard(err)
	require.True(t, ok)
	assert.Equal(t, "cpf", stdErr.Field)
	assert.Equal(t, "taken", stdErr.Message)
}

func TestErrorHandler_HandleHTTPError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   ErrorCode
		wantLogged bool
	}{
		{"validation is 422", NewValidationError("name", "Required"), http.StatusUnprocessableEntity, ErrCodeValidationFailed, false},
		{"missing session is 404", NewSessionNotFoundError("abc"), http.StatusNotFound, ErrCodeSessionNotFound, false},
		{"plain error is internal", fmt.Errorf("kaboom"), http.StatusInternalServerError, ErrCodeInternal, true},
		{"persistence is 502", NewPersistenceError("", "", nil), http.StatusBadGateway, ErrCodePersistenceFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &captureLogger{}
			h := NewErrorHandler(log)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil)

			h.HandleHTTPError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantLogged, len(log.messages) > 0)
		})
	}
}
