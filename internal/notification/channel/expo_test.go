package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestMessages(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{
			SubscriptionID: fmt.Sprintf("sub-%d", i),
			Token:          fmt.Sprintf("ExponentPushToken[%d]", i),
			Title:          "Sale",
			Body:           "20% off today",
			Data:           map[string]string{"notification_id": "n-1", "organization_id": "org-1", "route": "notifications"},
		}
	}
	return msgs
}

func newExpoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, expoSendPath, r.URL.Path)
		assert.Equal(t, "Bearer expo-token", r.Header.Get("Authorization"))

		var payload []expoMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if assert.NotEmpty(t, payload) {
			assert.Equal(t, "notifications", payload[0].Data["route"])
		}

		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExpoChannel_Send(t *testing.T) {
	tests := []struct {
		name         string
		messages     int
		status       int
		body         string
		wantOutcomes []Outcome
		wantErr      error
		wantAnyErr   bool
	}{
		{
			name:         "mixed tickets",
			messages:     3,
			status:       http.StatusOK,
			body:         `{"data":[{"status":"ok","id":"a"},{"status":"error","message":"gone","details":{"error":"DeviceNotRegistered"}},{"status":"error","message":"slow down","details":{"error":"MessageRateExceeded"}}]}`,
			wantOutcomes: []Outcome{Delivered, RejectedPermanent, RejectedTransient},
		},
		{
			name:         "error ticket without details",
			messages:     1,
			status:       http.StatusOK,
			body:         `{"data":[{"status":"error","message":"unknown"}]}`,
			wantOutcomes: []Outcome{RejectedTransient},
		},
		{
			name:       "server error",
			messages:   2,
			status:     http.StatusBadGateway,
			body:       `upstream down`,
			wantAnyErr: true,
		},
		{
			name:       "request level error",
			messages:   1,
			status:     http.StatusOK,
			body:       `{"errors":[{"code":"PUSH_TOO_MANY_EXPERIENCE_IDS","message":"mixed projects"}]}`,
			wantAnyErr: true,
		},
		{
			name:       "undecodable body",
			messages:   1,
			status:     http.StatusOK,
			body:       `<html>`,
			wantAnyErr: true,
		},
		{
			name:     "ticket count mismatch",
			messages: 2,
			status:   http.StatusOK,
			body:     `{"data":[{"status":"ok"}]}`,
			wantErr:  ErrTicketMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newExpoServer(t, tt.status, tt.body)
			ch := NewExpoChannel(server.URL+"/", "expo-token", time.Second)

			results, err := ch.Send(context.Background(), createTestMessages(tt.messages))
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, results)
			case tt.wantAnyErr:
				assert.Error(t, err)
				assert.Nil(t, results)
			default:
				require.NoError(t, err)
				require.Len(t, results, len(tt.wantOutcomes))
				for i, want := range tt.wantOutcomes {
					assert.Equal(t, want, results[i].Outcome, "ticket %d", i)
				}
			}
		})
	}
}

func TestExpoChannel_RejectsOversizedBatch(t *testing.T) {
	ch := NewExpoChannel("http://127.0.0.1:0", "", time.Second)
	_, err := ch.Send(context.Background(), createTestMessages(MaxBatchSize+1))
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestExpoChannel_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewExpoChannel(url, "", time.Second).Send(context.Background(), createTestMessages(1))
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "rejected_permanent", RejectedPermanent.String())
	assert.Equal(t, "rejected_transient", RejectedTransient.String())
}
