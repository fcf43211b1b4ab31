package report

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestReport() *models.DispatchReport {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.DispatchReport{
		NotificationID: "n-1",
		OrganizationID: "org-1",
		Status:         models.StatusSent,
		Provider:       "expo",
		Recipients:     2,
		Batches:        1,
		SentCount:      3,
		Total:          3,
		StartedAt:      start,
		FinishedAt:     start.Add(2 * time.Second),
	}
}

func newTestIndexer(t *testing.T, handler http.HandlerFunc) *Indexer {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return NewIndexer(client, "notification-dispatches", logger.NewTestLogger(t))
}

func TestIndexer_Index(t *testing.T) {
	var gotPath string
	var gotDoc models.DispatchReport
	idx := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	require.NoError(t, idx.Index(context.Background(), createTestReport()))
	assert.Equal(t, "/notification-dispatches/_doc/n-1", gotPath)
	assert.Equal(t, "org-1", gotDoc.OrganizationID)
	assert.Equal(t, 3, gotDoc.SentCount)
}

func TestIndexer_IndexRejected(t *testing.T) {
	idx := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	})

	err := idx.Index(context.Background(), createTestReport())
	assert.Error(t, err)
}

func TestIndexer_Get(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{
			name:   "found",
			status: http.StatusOK,
			body:   `{"found":true,"_source":{"notificationId":"n-1","organizationId":"org-1","status":"sent","sentCount":3}}`,
		},
		{
			name:    "missing document",
			status:  http.StatusNotFound,
			body:    `{"found":false}`,
			wantErr: ErrReportNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/notification-dispatches/_doc/n-1", r.URL.Path)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := idx.Get(context.Background(), "n-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.StatusSent, got.Status)
			assert.Equal(t, 3, got.SentCount)
		})
	}
}

func TestIndexer_Disabled(t *testing.T) {
	idx := NewIndexer(nil, "notification-dispatches", logger.NewNoOpLogger())
	assert.False(t, idx.Enabled())
	assert.NoError(t, idx.Index(context.Background(), createTestReport()))

	_, err := idx.Get(context.Background(), "n-1")
	assert.ErrorIs(t, err, ErrReportNotFound)
}
