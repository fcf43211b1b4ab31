package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loyalty-notify/internal/common/auth"
	"loyalty-notify/internal/common/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func createRateLimitedRouter(t *testing.T, limit int) (*gin.Engine, redismock.ClientMock) {
	t.Helper()
	rdb, mock := redismock.NewClientMock()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ctxIdentity, &auth.Identity{Subject: "user-1"})
		c.Next()
	})
	router.Use(RateLimit(rdb, limit, time.Minute, logger.NewTestLogger(t)))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router, mock
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name          string
		setupMock     func(redismock.ClientMock)
		wantStatus    int
		wantRemaining string
	}{
		{
			name: "first request opens the window",
			setupMock: func(m redismock.ClientMock) {
				m.ExpectIncr("notify:ratelimit:user-1").SetVal(1)
				m.ExpectExpire("notify:ratelimit:user-1", time.Minute).SetVal(true)
			},
			wantStatus:    http.StatusNoContent,
			wantRemaining: "2",
		},
		{
			name: "within the window",
			setupMock: func(m redismock.ClientMock) {
				m.ExpectIncr("notify:ratelimit:user-1").SetVal(3)
			},
			wantStatus:    http.StatusNoContent,
			wantRemaining: "0",
		},
		{
			name: "over the limit",
			setupMock: func(m redismock.ClientMock) {
				m.ExpectIncr("notify:ratelimit:user-1").SetVal(4)
			},
			wantStatus:    http.StatusTooManyRequests,
			wantRemaining: "0",
		},
		{
			name: "redis down lets requests through",
			setupMock: func(m redismock.ClientMock) {
				m.ExpectIncr("notify:ratelimit:user-1").SetErr(errors.New("connection refused"))
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, mock := createRateLimitedRouter(t, 3)
			tt.setupMock(mock)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantRemaining, w.Header().Get("X-RateLimit-Remaining"))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
