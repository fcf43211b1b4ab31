// internal/workers/notification/moderate-notification/handler_test.go
package moderatenotification

import (
	"context"
	"errors"
	"testing"
	"time"

	commonerrors "loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModerator struct {
	verdict *models.ModerationVerdict
	err     error
}

func (f *fakeModerator) Moderate(ctx context.Context, title, body string) (*models.ModerationVerdict, error) {
	return f.verdict, f.err
}

func createTestHandler(t *testing.T, m *fakeModerator) *Handler {
	return NewHandler(&Config{Timeout: 5 * time.Second}, m, nil, logger.NewTestLogger(t))
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		verdict  *models.ModerationVerdict
		err      error
		want     *Output
		wantCode commonerrors.ErrorCode
	}{
		{
			name:    "approved",
			verdict: &models.ModerationVerdict{IsApproved: true, Severity: models.SeverityLow},
			want:    &Output{IsApproved: true, Reasons: []string{}, Severity: "low"},
		},
		{
			name: "rejected with reasons",
			verdict: &models.ModerationVerdict{
				IsApproved: false,
				Reasons:    []string{"political content"},
				Severity:   models.SeverityHigh,
			},
			want: &Output{IsApproved: false, Reasons: []string{"political content"}, Severity: "high"},
		},
		{
			name:     "gateway down",
			err:      commonerrors.NewModerationUnavailableError(errors.New("timeout")),
			wantCode: commonerrors.ErrCodeModerationUnavailable,
		},
		{
			name:     "not configured",
			err:      commonerrors.NewModerationNotConfiguredError("missing api key"),
			wantCode: commonerrors.ErrCodeModerationNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &fakeModerator{verdict: tt.verdict, err: tt.err})

			got, err := h.Execute(context.Background(), &Input{Title: "Sale", Body: "Half price"})
			if tt.wantCode != "" {
				assert.True(t, commonerrors.HasCode(err, tt.wantCode))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
