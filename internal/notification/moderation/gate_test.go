package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	commonerrors "loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGateway struct {
	server *httptest.Server
	hits   int32
}

// newFakeGateway serves status with {"text": text} as the body.
func newFakeGateway(t *testing.T, status int, text string) *fakeGateway {
	t.Helper()
	f := &fakeGateway{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.hits, 1)
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req["prompt"], "loyalty")

		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func createTestGate(t *testing.T, baseURL string, cache *redis.Client) *Gate {
	t.Helper()
	return NewGate(Config{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		Timeout:   2 * time.Second,
		MaxTokens: 200,
		CacheTTL:  time.Hour,
	}, cache, logger.NewTestLogger(t))
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestGate_Moderate(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		text         string
		wantApproved bool
		wantSeverity models.Severity
		wantCode     commonerrors.ErrorCode
	}{
		{
			name:         "approved",
			status:       http.StatusOK,
			text:         `{"isApproved": true, "reasons": [], "severity": "low"}`,
			wantApproved: true,
			wantSeverity: models.SeverityLow,
		},
		{
			name:         "rejected inside markdown fence",
			status:       http.StatusOK,
			text:         "```json\n{\"isApproved\": false, \"reasons\": [\"political content\"], \"severity\": \"high\"}\n```",
			wantSeverity: models.SeverityHigh,
		},
		{
			name:     "gateway error",
			status:   http.StatusInternalServerError,
			text:     "",
			wantCode: commonerrors.ErrCodeModerationUnavailable,
		},
		{
			name:     "bad api key",
			status:   http.StatusUnauthorized,
			text:     "",
			wantCode: commonerrors.ErrCodeModerationNotConfigured,
		},
		{
			name:     "forbidden api key",
			status:   http.StatusForbidden,
			text:     "",
			wantCode: commonerrors.ErrCodeModerationNotConfigured,
		},
		{
			name:     "prose instead of json",
			status:   http.StatusOK,
			text:     "Looks fine to me!",
			wantCode: commonerrors.ErrCodeModerationMalformed,
		},
		{
			name:     "unknown severity",
			status:   http.StatusOK,
			text:     `{"isApproved": true, "reasons": [], "severity": "extreme"}`,
			wantCode: commonerrors.ErrCodeModerationMalformed,
		},
		{
			name:     "missing isApproved",
			status:   http.StatusOK,
			text:     `{"reasons": [], "severity": "low"}`,
			wantCode: commonerrors.ErrCodeModerationMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway(t, tt.status, tt.text)
			gate := createTestGate(t, gw.server.URL, nil)

			verdict, err := gate.Moderate(context.Background(), "Sale", "20% off today")
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Nil(t, verdict)
				assert.True(t, commonerrors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantApproved, verdict.IsApproved)
			assert.Equal(t, tt.wantSeverity, verdict.Severity)
			assert.NotNil(t, verdict.Reasons)
		})
	}
}

func TestGate_NotConfigured(t *testing.T) {
	gw := newFakeGateway(t, http.StatusOK, `{"isApproved": true, "reasons": [], "severity": "low"}`)

	for _, cfg := range []Config{
		{BaseURL: gw.server.URL},
		{APIKey: "test-key"},
	} {
		gate := NewGate(cfg, nil, logger.NewTestLogger(t))
		_, err := gate.Moderate(context.Background(), "Sale", "20% off")
		assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeModerationNotConfigured))
	}
	assert.Zero(t, atomic.LoadInt32(&gw.hits))
}

func TestGate_CachesVerdicts(t *testing.T) {
	_, rdb := setupRedis(t)
	gw := newFakeGateway(t, http.StatusOK, `{"isApproved": true, "reasons": ["promotion"], "severity": "low"}`)
	gate := createTestGate(t, gw.server.URL, rdb)
	ctx := context.Background()

	first, err := gate.Moderate(ctx, "Sale", "20% off today")
	require.NoError(t, err)
	second, err := gate.Moderate(ctx, "Sale", "20% off today")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&gw.hits))

	_, err = gate.Moderate(ctx, "Sale", "30% off today")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gw.hits))
}

func TestGate_CacheOutageIsIgnored(t *testing.T) {
	mr, rdb := setupRedis(t)
	mr.Close()
	gw := newFakeGateway(t, http.StatusOK, `{"isApproved": true, "reasons": [], "severity": "low"}`)

	verdict, err := createTestGate(t, gw.server.URL, rdb).Moderate(context.Background(), "Sale", "20% off")
	require.NoError(t, err)
	assert.True(t, verdict.IsApproved)
}

func TestGate_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	gw := newFakeGateway(t, http.StatusBadGateway, "")
	gate := createTestGate(t, gw.server.URL, nil)

	for i := 0; i < 7; i++ {
		_, err := gate.Moderate(context.Background(), "Sale", "20% off")
		assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeModerationUnavailable))
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&gw.hits))
}

func TestGate_CredentialFailuresDoNotOpenBreaker(t *testing.T) {
	gw := newFakeGateway(t, http.StatusUnauthorized, "")
	gate := createTestGate(t, gw.server.URL, nil)

	for i := 0; i < 7; i++ {
		_, err := gate.Moderate(context.Background(), "Sale", "20% off")
		assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeModerationNotConfigured))
	}
	assert.Equal(t, int32(7), atomic.LoadInt32(&gw.hits))
}
