// Package quota tracks and enforces per-organization notification limits.
package quota

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"loyalty-notify/internal/common/config"
	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/models"
)

const quotaColumns = `organization_id, plan_type, daily_limit, monthly_limit,
	min_hours_between_notifications, notifications_sent_today,
	notifications_sent_this_month, last_notification_sent_at,
	reset_daily_at, reset_monthly_at, updated_at`

const querySelectQuota = `SELECT ` + quotaColumns + `
	FROM organization_notification_limits
	WHERE organization_id = $1`

const queryInsertDefaultQuota = `
	INSERT INTO organization_notification_limits (
		organization_id, plan_type, daily_limit, monthly_limit,
		min_hours_between_notifications, notifications_sent_today,
		notifications_sent_this_month, reset_daily_at, reset_monthly_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, $8)
	ON CONFLICT (organization_id) DO NOTHING`

// queryRecordSend only matches while both counters still have headroom, so
// concurrent increments can never push a counter past its limit.
const queryRecordSend = `
	UPDATE organization_notification_limits
	SET notifications_sent_today = notifications_sent_today + 1,
		notifications_sent_this_month = notifications_sent_this_month + 1,
		last_notification_sent_at = $2,
		updated_at = $2
	WHERE organization_id = $1
		AND notifications_sent_today < daily_limit
		AND notifications_sent_this_month < monthly_limit`

const queryChangePlan = `
	UPDATE organization_notification_limits
	SET plan_type = $2, daily_limit = $3, monthly_limit = $4,
		min_hours_between_notifications = $5, updated_at = $6
	WHERE organization_id = $1`

// Ledger reads and updates organization_notification_limits.
type Ledger struct {
	db     *sql.DB
	plans  map[string]config.PlanLimits
	logger logger.Logger
	now    func() time.Time
}

func NewLedger(db *sql.DB, plans map[string]config.PlanLimits, log logger.Logger) *Ledger {
	if len(plans) == 0 {
		plans = config.DefaultPlans
	}
	return &Ledger{
		db:     db,
		plans:  plans,
		logger: logger.ForComponent(log, "quota-ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreate returns the organization's quota, creating a free-plan record
// on first use.
func (l *Ledger) GetOrCreate(ctx context.Context, organizationID string) (*models.OrganizationQuota, error) {
	q, err := l.load(ctx, organizationID)
	if err == nil {
		return q, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewDatabaseQueryFailedError("load quota", err)
	}

	if err := l.createDefault(ctx, organizationID); err != nil {
		return nil, errors.NewQuotaUnavailableError(organizationID, err)
	}

	q, err = l.load(ctx, organizationID)
	if err != nil {
		return nil, errors.NewQuotaUnavailableError(organizationID, err)
	}
	return q, nil
}

// CanSend reports whether the organization may dispatch now, with the snapshot
// the decision was made on.
func (l *Ledger) CanSend(ctx context.Context, organizationID string) (bool, *models.OrganizationQuota, error) {
	q, err := l.GetOrCreate(ctx, organizationID)
	if err != nil {
		return false, nil, err
	}
	return q.CanSend(l.now()), q, nil
}

// Status returns the quota snapshot with the computed send permission.
func (l *Ledger) Status(ctx context.Context, organizationID string) (*models.QuotaStatus, error) {
	q, err := l.GetOrCreate(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	return models.NewQuotaStatus(q, l.now()), nil
}

// RecordSend consumes one unit of quota in a single conditional update.
func (l *Ledger) RecordSend(ctx context.Context, organizationID string) error {
	res, err := l.db.ExecContext(ctx, queryRecordSend, organizationID, l.now())
	if err != nil {
		return errors.NewDatabaseQueryFailedError("record send", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseQueryFailedError("record send", err)
	}
	if rows == 0 {
		return errors.NewQuotaExceededError(organizationID, nil)
	}

	l.logger.Info("quota consumed", map[string]interface{}{"organizationId": organizationID})
	return nil
}

// ChangePlan applies the limits of a configured plan to the organization.
func (l *Ledger) ChangePlan(ctx context.Context, organizationID string, plan models.PlanType) (*models.OrganizationQuota, error) {
	limits, ok := l.plans[string(plan)]
	if !ok {
		return nil, errors.NewValidationError(map[string]string{"plan": fmt.Sprintf("unknown plan %q", plan)})
	}
	if _, err := l.GetOrCreate(ctx, organizationID); err != nil {
		return nil, err
	}

	_, err := l.db.ExecContext(ctx, queryChangePlan, organizationID, string(plan),
		limits.DailyLimit, limits.MonthlyLimit, limits.MinHoursBetweenSend, l.now())
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("change plan", err)
	}

	l.logger.Info("plan changed", map[string]interface{}{
		"organizationId": organizationID,
		"plan":           string(plan),
	})
	return l.GetOrCreate(ctx, organizationID)
}

func (l *Ledger) createDefault(ctx context.Context, organizationID string) error {
	limits, ok := l.plans[string(models.PlanFree)]
	if !ok {
		limits = config.DefaultPlans[string(models.PlanFree)]
	}
	now := l.now()

	_, err := l.db.ExecContext(ctx, queryInsertDefaultQuota,
		organizationID, string(models.PlanFree),
		limits.DailyLimit, limits.MonthlyLimit, limits.MinHoursBetweenSend,
		NextDailyReset(now), NextMonthlyReset(now), now,
	)
	if err != nil {
		return fmt.Errorf("insert default quota: %w", err)
	}

	l.logger.Info("created default quota", map[string]interface{}{"organizationId": organizationID})
	return nil
}

func (l *Ledger) load(ctx context.Context, organizationID string) (*models.OrganizationQuota, error) {
	var (
		q        models.OrganizationQuota
		plan     string
		lastSent sql.NullTime
	)
	err := l.db.QueryRowContext(ctx, querySelectQuota, organizationID).Scan(
		&q.OrganizationID, &plan, &q.DailyLimit, &q.MonthlyLimit,
		&q.MinHoursBetweenSends, &q.NotificationsSentToday,
		&q.NotificationsSentThisMonth, &lastSent,
		&q.ResetDailyAt, &q.ResetMonthlyAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.PlanType = models.PlanType(plan)
	if lastSent.Valid {
		t := lastSent.Time
		q.LastNotificationSentAt = &t
	}
	return &q, nil
}

// NextDailyReset is the next UTC midnight after now.
func NextDailyReset(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

// NextMonthlyReset is the first instant of the next UTC month.
func NextMonthlyReset(now time.Time) time.Time {
	y, m, _ := now.UTC().Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC)
}
