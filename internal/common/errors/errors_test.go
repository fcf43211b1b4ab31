package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationFailed, http.StatusBadRequest},
		{ErrCodeAuthentication, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotificationNotFound, http.StatusNotFound},
		{ErrCodeNotificationConflict, http.StatusConflict},
		{ErrCodeDispatchInProgress, http.StatusConflict},
		{ErrCodeQuotaExceeded, http.StatusTooManyRequests},
		{ErrCodeModerationUnavailable, http.StatusServiceUnavailable},
		{ErrCodeModerationMalformed, http.StatusBadGateway},
		{ErrCodeModerationNotConfigured, http.StatusInternalServerError},
		{ErrCodeQuotaUnavailable, http.StatusInternalServerError},
		{ErrCodeDispatchFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}

func TestAsFindsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("trigger: %w", NewNotificationNotFoundError("n-1"))

	stdErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotificationNotFound, stdErr.Code)
	assert.True(t, HasCode(wrapped, ErrCodeNotificationNotFound))
	assert.False(t, HasCode(wrapped, ErrCodeQuotaExceeded))
}

func TestNormalizePlainError(t *testing.T) {
	stdErr := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, stdErr.Code)
	assert.Equal(t, "boom", stdErr.Details)
}

func TestValidationErrorCarriesFields(t *testing.T) {
	err := NewValidationError(map[string]string{"title": "must not be blank"})
	assert.Equal(t, map[string]string{"title": "must not be blank"}, err.Metadata["fields"])
	assert.Contains(t, err.Details, "title: must not be blank")
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable code keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewModerationUnavailableError(stderrors.New("timeout")))
		assert.Equal(t, "MODERATION_UNAVAILABLE", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("non-retryable code has no retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewQuotaExceededError("org-1", map[string]int{"dailyLimit": 1}))
		assert.Equal(t, 0, bpmn.Retries)
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "QUOTA_EXCEEDED", vars["errorCode"])
		assert.Equal(t, map[string]int{"dailyLimit": 1}, vars["quota"])
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "QUOTA", GetErrorCategory(ErrCodeQuotaExceeded))
	assert.Equal(t, "MODERATION", GetErrorCategory(ErrCodeModerationMalformed))
	assert.Equal(t, "DISPATCH", GetErrorCategory(ErrCodeLockUnavailable))
	assert.Equal(t, "DISPATCH", GetErrorCategory(ErrCodeNotificationConflict))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDatabaseQueryFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeSubscriptionInvalid))
	assert.Equal(t, "UNKNOWN", GetErrorCategory(ErrCodeInternal))
}

func TestRetriesFor(t *testing.T) {
	assert.Equal(t, int32(3), retriesFor(jobWithRetries(10), 3))
	assert.Equal(t, int32(1), retriesFor(jobWithRetries(2), 3))
}

func jobWithRetries(n int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{Key: 1, Type: "dispatch-notification", Retries: n}}
}
