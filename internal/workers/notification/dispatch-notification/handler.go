// internal/workers/notification/dispatch-notification/handler.go
package dispatchnotification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loyalty-notify/internal/common/camunda"
	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/metrics"
	"loyalty-notify/internal/common/observability"
	"loyalty-notify/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "dispatch-notification"
)

// Trigger is the lifecycle operation this worker drives.
type Trigger interface {
	Trigger(ctx context.Context, organizationID, notificationID string) (*models.DispatchResult, error)
}

type Handler struct {
	config     *Config
	service    Trigger
	obs        *observability.Observability
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, service Trigger, obs *observability.Observability, log logger.Logger) *Handler {
	if obs == nil {
		obs = observability.NewNoop()
	}
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		service:    service,
		obs:        obs,
		errHandler: errors.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if err := camunda.ValidateVariables(h.config.InputSchema, job.Variables); err != nil {
		h.fail(ctx, client, job, start, err)
		return
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, start, errors.NewValidationError(map[string]string{
			"variables": fmt.Sprintf("parse input: %v", err),
		}))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, start, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromObject(output)
	if err != nil {
		h.fail(ctx, client, job, start, errors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, start time.Time, err error) {
	code := string(errors.Normalize(err).Code)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	fields := map[string]string{}
	if strings.TrimSpace(input.NotificationID) == "" {
		fields["notificationId"] = "is required"
	}
	if strings.TrimSpace(input.OrganizationID) == "" {
		fields["organizationId"] = "is required"
	}
	if len(fields) > 0 {
		return nil, errors.NewValidationError(fields)
	}

	result, err := h.service.Trigger(ctx, input.OrganizationID, input.NotificationID)
	if err != nil {
		return nil, err
	}

	h.logger.Info("notification dispatched", map[string]interface{}{
		"notificationId": input.NotificationID,
		"sentCount":      result.SentCount,
		"failedCount":    result.FailedCount,
	})
	return &Output{
		SentCount:   result.SentCount,
		FailedCount: result.FailedCount,
		Total:       result.Total,
		Status:      string(models.StatusSent),
	}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
