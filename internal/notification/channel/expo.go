// internal/notification/channel/expo.go
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	commonhttp "loyalty-notify/internal/common/http"
)

const (
	expoSendPath            = "/--/api/v2/push/send"
	expoDeviceNotRegistered = "DeviceNotRegistered"
)

type expoMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// ExpoChannel sends through the Expo push service.
type ExpoChannel struct {
	baseURL     string
	accessToken string
	client      *commonhttp.Client
}

func NewExpoChannel(baseURL, accessToken string, timeout time.Duration) *ExpoChannel {
	return &ExpoChannel{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		client:      commonhttp.NewClient(timeout),
	}
}

func (c *ExpoChannel) Name() string { return "expo" }

func (c *ExpoChannel) Send(ctx context.Context, messages []Message) ([]Result, error) {
	if len(messages) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d messages", ErrBatchTooLarge, len(messages))
	}

	payload := make([]expoMessage, len(messages))
	for i, m := range messages {
		payload[i] = expoMessage{To: m.Token, Title: m.Title, Body: m.Body, Data: m.Data, Sound: "default"}
	}

	headers := map[string]string{}
	if c.accessToken != "" {
		headers["Authorization"] = "Bearer " + c.accessToken
	}

	resp, err := c.client.PostJSON(ctx, c.baseURL+expoSendPath, headers, payload)
	if err != nil {
		return nil, fmt.Errorf("expo transport: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("expo returned status %d", resp.StatusCode)
	}

	var decoded expoResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decode expo response: %w", err)
	}
	if len(decoded.Data) == 0 && len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("expo request error %s: %s", decoded.Errors[0].Code, decoded.Errors[0].Message)
	}
	if len(decoded.Data) != len(messages) {
		return nil, fmt.Errorf("%w: sent %d, got %d tickets", ErrTicketMismatch, len(messages), len(decoded.Data))
	}

	results := make([]Result, len(decoded.Data))
	for i, ticket := range decoded.Data {
		results[i] = classifyExpoTicket(ticket)
	}
	return results, nil
}

func classifyExpoTicket(t expoTicket) Result {
	switch {
	case t.Status == "ok":
		return Result{Outcome: Delivered}
	case t.Details.Error == expoDeviceNotRegistered:
		return Result{Outcome: RejectedPermanent, Reason: t.Details.Error}
	case t.Details.Error != "":
		return Result{Outcome: RejectedTransient, Reason: t.Details.Error}
	default:
		return Result{Outcome: RejectedTransient, Reason: t.Message}
	}
}
