// Package dispatch fans a notification out to its audience in gateway-sized
// batches and settles its final status.
package dispatch

import (
	"context"
	"errors"
	"time"

	apperrors "loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/metrics"
	"loyalty-notify/internal/common/observability"
	"loyalty-notify/internal/models"
	"loyalty-notify/internal/notification/channel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// NotificationStore persists the status moves made during a dispatch.
type NotificationStore interface {
	Get(ctx context.Context, id string) (*models.Notification, error)
	MarkSending(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result models.DispatchResult) error
	MarkFailed(ctx context.Context, id string, result models.DispatchResult) error
}

type AudienceResolver interface {
	Resolve(ctx context.Context, organizationID string) ([]models.Recipient, error)
}

type TokenDeactivator interface {
	Deactivate(ctx context.Context, subscriptionID string) error
}

type QuotaRecorder interface {
	RecordSend(ctx context.Context, organizationID string) error
}

type ReportSink interface {
	Index(ctx context.Context, r *models.DispatchReport) error
}

const dataRoute = "notifications"

type Batcher struct {
	store    NotificationStore
	audience AudienceResolver
	channel  channel.Channel
	tokens   TokenDeactivator
	quota    QuotaRecorder
	reports  ReportSink
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

// NewBatcher wires a batcher. reports may be nil.
func NewBatcher(
	store NotificationStore,
	audience AudienceResolver,
	ch channel.Channel,
	tokens TokenDeactivator,
	quota QuotaRecorder,
	reports ReportSink,
	obs *observability.Observability,
	log logger.Logger,
) *Batcher {
	if obs == nil {
		obs = observability.NewNoop()
	}
	return &Batcher{
		store:    store,
		audience: audience,
		channel:  ch,
		tokens:   tokens,
		quota:    quota,
		reports:  reports,
		obs:      obs,
		logger:   logger.ForComponent(log, "dispatch"),
		now:      time.Now,
	}
}

// Dispatch sends notificationID to every active device of its organization.
// Partial delivery failure is reported through the counts, not as an error.
func (b *Batcher) Dispatch(ctx context.Context, notificationID string) (*models.DispatchResult, error) {
	n, err := b.store.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	switch {
	case n.Status == models.StatusSending:
		return nil, apperrors.NewDispatchInProgressError("notificationId: " + n.ID)
	case n.Status.IsTerminal():
		return nil, apperrors.NewNotificationConflictError(n.ID, string(n.Status))
	}

	if err := b.store.MarkSending(ctx, n.ID); err != nil {
		return nil, err
	}

	// Once sending has started the run is settled even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	ctx, span := b.obs.StartSpan(ctx, "notification.dispatch",
		attribute.String("notification.id", n.ID),
		attribute.String("organization.id", n.OrganizationID),
		attribute.String("push.provider", b.channel.Name()),
	)
	defer span.End()

	log := b.logger.WithFields(map[string]interface{}{
		"notificationId": n.ID,
		"organizationId": n.OrganizationID,
	})
	report := &models.DispatchReport{
		NotificationID: n.ID,
		OrganizationID: n.OrganizationID,
		Provider:       b.channel.Name(),
		StartedAt:      b.now().UTC(),
	}

	recipients, err := b.audience.Resolve(ctx, n.OrganizationID)
	if err != nil {
		log.Error("audience resolution failed", map[string]interface{}{"error": err.Error()})
		span.RecordError(err)
		span.SetStatus(codes.Error, "audience resolution failed")
		b.settleFailed(ctx, log, report, models.DispatchResult{}, err)
		return nil, apperrors.NewDispatchFailedError(n.ID, err)
	}

	messages := buildMessages(n, recipients)
	report.Recipients = len(recipients)
	result := models.DispatchResult{Total: len(messages)}

	log.Info("dispatch started", map[string]interface{}{
		"recipients": len(recipients),
		"messages":   len(messages),
	})

	for start := 0; start < len(messages); start += channel.MaxBatchSize {
		end := start + channel.MaxBatchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch := messages[start:end]
		report.Batches++

		results, err := b.sendBatch(ctx, batch)
		if err != nil {
			report.FailedBatches++
			result.FailedCount += len(batch)
			metrics.MessagesTotal.WithLabelValues("transport_error").Add(float64(len(batch)))

			if errors.Is(err, channel.ErrTicketMismatch) {
				log.Error("ticket count mismatch, aborting dispatch", map[string]interface{}{
					"batch": report.Batches,
					"error": err.Error(),
				})
				span.RecordError(err)
				span.SetStatus(codes.Error, "ticket mismatch")
				b.settleFailed(ctx, log, report, result, err)
				b.recordSend(ctx, log, n.OrganizationID)
				return nil, apperrors.NewDispatchFailedError(n.ID, err)
			}

			log.Warn("batch failed", map[string]interface{}{
				"batch": report.Batches,
				"size":  len(batch),
				"error": err.Error(),
			})
			continue
		}

		for i, r := range results {
			metrics.MessagesTotal.WithLabelValues(r.Outcome.String()).Inc()
			if r.Outcome == channel.Delivered {
				result.SentCount++
				continue
			}
			result.FailedCount++
			if r.Outcome == channel.RejectedPermanent {
				if err := b.tokens.Deactivate(ctx, batch[i].SubscriptionID); err != nil {
					log.Warn("token deactivation failed", map[string]interface{}{
						"subscriptionId": batch[i].SubscriptionID,
						"error":          err.Error(),
					})
					continue
				}
				report.TokensDeactivated++
			}
		}
	}

	report.Status = models.StatusSent
	b.fillReport(report, result)
	span.SetAttributes(
		attribute.Int("dispatch.sent", result.SentCount),
		attribute.Int("dispatch.failed", result.FailedCount),
		attribute.Int("dispatch.total", result.Total),
	)

	if err := b.store.Complete(ctx, n.ID, result); err != nil {
		log.Error("failed to persist dispatch result", map[string]interface{}{"error": err.Error()})
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist dispatch result failed")
		b.recordSend(ctx, log, n.OrganizationID)
		// Leave no record stuck in sending.
		b.settleFailed(ctx, log, report, result, err)
		return nil, err
	}
	metrics.DispatchesTotal.WithLabelValues(string(models.StatusSent)).Inc()

	b.recordSend(ctx, log, n.OrganizationID)
	b.index(ctx, log, report)

	log.Info("dispatch completed", map[string]interface{}{
		"sentCount":   result.SentCount,
		"failedCount": result.FailedCount,
		"total":       result.Total,
	})
	return &result, nil
}

func (b *Batcher) sendBatch(ctx context.Context, batch []channel.Message) ([]channel.Result, error) {
	start := time.Now()
	defer func() {
		metrics.BatchDuration.WithLabelValues(b.channel.Name()).Observe(time.Since(start).Seconds())
	}()

	results, err := b.channel.Send(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(results) != len(batch) {
		return nil, channel.ErrTicketMismatch
	}
	return results, nil
}

func (b *Batcher) settleFailed(ctx context.Context, log logger.Logger, report *models.DispatchReport, result models.DispatchResult, cause error) {
	if err := b.store.MarkFailed(ctx, report.NotificationID, result); err != nil {
		log.Error("failed to mark notification failed", map[string]interface{}{"error": err.Error()})
	}
	metrics.DispatchesTotal.WithLabelValues(string(models.StatusFailed)).Inc()

	report.Status = models.StatusFailed
	report.Error = cause.Error()
	b.fillReport(report, result)
	b.index(ctx, log, report)
}

// recordSend consumes one unit of quota. The dispatch already happened, so a
// failure here is logged rather than returned.
func (b *Batcher) recordSend(ctx context.Context, log logger.Logger, organizationID string) {
	if err := b.quota.RecordSend(ctx, organizationID); err != nil {
		metrics.QuotaRejections.WithLabelValues("record_send").Inc()
		log.Warn("quota record failed after dispatch", map[string]interface{}{"error": err.Error()})
	}
}

func (b *Batcher) fillReport(report *models.DispatchReport, result models.DispatchResult) {
	report.SentCount = result.SentCount
	report.FailedCount = result.FailedCount
	report.Total = result.Total
	report.FinishedAt = b.now().UTC()
}

func (b *Batcher) index(ctx context.Context, log logger.Logger, report *models.DispatchReport) {
	if b.reports == nil {
		return
	}
	if err := b.reports.Index(ctx, report); err != nil {
		log.Debug("dispatch report not indexed", map[string]interface{}{"error": err.Error()})
	}
}

// buildMessages flattens recipients into one message per device token.
func buildMessages(n *models.Notification, recipients []models.Recipient) []channel.Message {
	var out []channel.Message
	for _, r := range recipients {
		for _, sub := range r.Tokens {
			out = append(out, channel.Message{
				SubscriptionID: sub.ID,
				Token:          sub.Token,
				Title:          n.Title,
				Body:           n.Body,
				Data: map[string]string{
					"notification_id": n.ID,
					"organization_id": n.OrganizationID,
					"route":           dataRoute,
				},
			})
		}
	}
	return out
}
