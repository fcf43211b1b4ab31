// internal/notification/channel/sns.go
package channel

import (
	"context"
	"encoding/json"
	"errors"

	commonaws "loyalty-notify/internal/common/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSChannel publishes to SNS platform endpoints; the subscription token is
// the endpoint ARN.
type SNSChannel struct {
	client commonaws.SNSPublisher
}

func NewSNSChannel(client commonaws.SNSPublisher) *SNSChannel {
	return &SNSChannel{client: client}
}

func (c *SNSChannel) Name() string { return "sns" }

// Send publishes messages one by one. SNS has no batch endpoint for mobile
// push, so only a cancelled context fails the batch as a whole.
func (c *SNSChannel) Send(ctx context.Context, messages []Message) ([]Result, error) {
	if len(messages) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}

	results := make([]Result, len(messages))
	for i, m := range messages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := snsPayload(m)
		if err != nil {
			results[i] = Result{Outcome: RejectedTransient, Reason: err.Error()}
			continue
		}

		_, err = c.client.Publish(ctx, &sns.PublishInput{
			TargetArn:        aws.String(m.Token),
			Message:          aws.String(payload),
			MessageStructure: aws.String("json"),
		})
		results[i] = classifySNSError(err)
	}
	return results, nil
}

func classifySNSError(err error) Result {
	if err == nil {
		return Result{Outcome: Delivered}
	}

	var disabled *types.EndpointDisabledException
	var notFound *types.NotFoundException
	switch {
	case errors.As(err, &disabled):
		return Result{Outcome: RejectedPermanent, Reason: "EndpointDisabled"}
	case errors.As(err, &notFound):
		return Result{Outcome: RejectedPermanent, Reason: "NotFound"}
	default:
		return Result{Outcome: RejectedTransient, Reason: err.Error()}
	}
}

// snsPayload builds the per-platform message structure.
func snsPayload(m Message) (string, error) {
	apns := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": m.Title, "body": m.Body},
			"sound": "default",
		},
	}
	for k, v := range m.Data {
		apns[k] = v
	}
	gcm := map[string]interface{}{
		"notification": map[string]string{"title": m.Title, "body": m.Body},
		"data":         m.Data,
	}

	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", err
	}
	gcmJSON, err := json.Marshal(gcm)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(map[string]string{
		"default":      m.Body,
		"APNS":         string(apnsJSON),
		"APNS_SANDBOX": string(apnsJSON),
		"GCM":          string(gcmJSON),
	})
	return string(out), err
}
