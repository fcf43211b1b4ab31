// internal/notification/lifecycle/service.go
package lifecycle

import (
	"context"
	"time"

	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/metrics"
	"loyalty-notify/internal/models"
	"loyalty-notify/internal/notification/quota"
)

type QuotaLedger interface {
	CanSend(ctx context.Context, organizationID string) (bool, *models.OrganizationQuota, error)
	Status(ctx context.Context, organizationID string) (*models.QuotaStatus, error)
}

type DispatchLocker interface {
	Acquire(ctx context.Context, organizationID string) (*quota.Lock, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, notificationID string) (*models.DispatchResult, error)
}

type Moderator interface {
	Moderate(ctx context.Context, title, body string) (*models.ModerationVerdict, error)
}

// Service is the entry point used by the HTTP API and the job workers.
type Service struct {
	store     *Store
	quota     QuotaLedger
	locker    DispatchLocker
	dispatch  Dispatcher
	moderator Moderator
	logger    logger.Logger
	now       func() time.Time
}

func NewService(store *Store, ledger QuotaLedger, locker DispatchLocker, dispatcher Dispatcher, moderator Moderator, log logger.Logger) *Service {
	return &Service{
		store:     store,
		quota:     ledger,
		locker:    locker,
		dispatch:  dispatcher,
		moderator: moderator,
		logger:    logger.ForComponent(log, "notification-service"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the content and stores a draft if the organization can
// currently send.
func (s *Service) Create(ctx context.Context, organizationID, actorID, title, body string) (*models.Notification, error) {
	draft, err := normalizeDraft(title, body)
	if err != nil {
		return nil, err
	}

	if err := s.checkQuota(ctx, organizationID, "create"); err != nil {
		return nil, err
	}

	n := &models.Notification{
		OrganizationID: organizationID,
		Title:          draft.Title,
		Body:           draft.Body,
		CreatedBy:      actorID,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	s.logger.Info("notification drafted", map[string]interface{}{
		"notificationId": n.ID,
		"organizationId": organizationID,
		"createdBy":      actorID,
	})
	return n, nil
}

// Get returns a notification only if it belongs to the organization.
func (s *Service) Get(ctx context.Context, organizationID, id string) (*models.Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.OrganizationID != organizationID {
		return nil, errors.NewNotificationNotFoundError(id)
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, organizationID string, statuses []models.NotificationStatus, limit int) ([]models.Notification, error) {
	for _, st := range statuses {
		if !st.Valid() {
			return nil, errors.NewValidationError(map[string]string{"status": "unknown status " + string(st)})
		}
	}
	return s.store.List(ctx, organizationID, statuses, limit)
}

// Update edits a draft's content.
func (s *Service) Update(ctx context.Context, organizationID, id, title, body string) (*models.Notification, error) {
	draft, err := normalizeDraft(title, body)
	if err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, organizationID, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusDraft {
		return nil, errors.NewNotificationConflictError(id, string(current.Status))
	}
	return s.store.UpdateDraft(ctx, id, draft.Title, draft.Body)
}

// Trigger dispatches a draft under the organization lock. The quota is
// checked after the lock is held, so concurrent triggers cannot both pass.
// The lease is renewed for as long as the dispatch runs.
func (s *Service) Trigger(ctx context.Context, organizationID, notificationID string) (*models.DispatchResult, error) {
	n, err := s.Get(ctx, organizationID, notificationID)
	if err != nil {
		return nil, err
	}
	switch {
	case n.Status == models.StatusSending:
		return nil, errors.NewDispatchInProgressError("notificationId: " + n.ID)
	case n.Status.IsTerminal():
		return nil, errors.NewNotificationConflictError(n.ID, string(n.Status))
	}

	lock, err := s.locker.Acquire(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("dispatch lock release failed", map[string]interface{}{
				"organizationId": organizationID,
				"error":          err.Error(),
			})
		}
	}()
	stopRenew := lock.KeepAlive(ctx)
	defer stopRenew()

	if err := s.checkQuota(ctx, organizationID, "dispatch"); err != nil {
		return nil, err
	}

	return s.dispatch.Dispatch(ctx, notificationID)
}

func (s *Service) Quota(ctx context.Context, organizationID string) (*models.QuotaStatus, error) {
	return s.quota.Status(ctx, organizationID)
}

// Moderate runs the advisory content check. It never changes state.
func (s *Service) Moderate(ctx context.Context, title, body string) (*models.ModerationVerdict, error) {
	draft, err := normalizeDraft(title, body)
	if err != nil {
		return nil, err
	}
	return s.moderator.Moderate(ctx, draft.Title, draft.Body)
}

func (s *Service) checkQuota(ctx context.Context, organizationID, operation string) error {
	ok, snapshot, err := s.quota.CanSend(ctx, organizationID)
	if err != nil {
		return err
	}
	if !ok {
		metrics.QuotaRejections.WithLabelValues(operation).Inc()
		return errors.NewQuotaExceededError(organizationID, models.NewQuotaStatus(snapshot, s.now()))
	}
	return nil
}
