// Package tokens owns the validity state of device push subscriptions.
package tokens

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/common/metrics"
	"loyalty-notify/internal/models"

	"github.com/google/uuid"
)

const queryDeactivate = `
	UPDATE push_subscriptions
	SET is_active = FALSE, updated_at = $2
	WHERE id = $1 AND is_active = TRUE`

const queryUpsertSubscription = `
	INSERT INTO push_subscriptions (
		id, beneficiary_id, token, platform, device_id, is_active, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
	ON CONFLICT (beneficiary_id, token) DO UPDATE
	SET is_active = TRUE,
		platform = EXCLUDED.platform,
		device_id = EXCLUDED.device_id,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at, updated_at`

const queryUnregister = `
	UPDATE push_subscriptions
	SET is_active = FALSE, updated_at = $3
	WHERE beneficiary_id = $1 AND token = $2 AND is_active = TRUE`

var platforms = map[string]bool{"ios": true, "android": true, "web": true}

type Manager struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewManager(db *sql.DB, log logger.Logger) *Manager {
	return &Manager{
		db:     db,
		logger: logger.ForComponent(log, "token-manager"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Deactivate marks a subscription unusable. Deactivating an already inactive
// or unknown subscription is a no-op.
func (m *Manager) Deactivate(ctx context.Context, subscriptionID string) error {
	res, err := m.db.ExecContext(ctx, queryDeactivate, subscriptionID, m.now())
	if err != nil {
		return errors.NewDatabaseQueryFailedError("deactivate subscription", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		metrics.TokensDeactivated.Inc()
		m.logger.Info("subscription deactivated", map[string]interface{}{"subscriptionId": subscriptionID})
	}
	return nil
}

// Register creates the subscription or reactivates an existing one for the
// same beneficiary and token.
func (m *Manager) Register(ctx context.Context, beneficiaryID, token, platform, deviceID string) (*models.PushSubscription, error) {
	token = strings.TrimSpace(token)
	platform = strings.ToLower(strings.TrimSpace(platform))

	switch {
	case beneficiaryID == "":
		return nil, errors.NewSubscriptionInvalidError("beneficiary is required")
	case token == "":
		return nil, errors.NewSubscriptionInvalidError("token is required")
	case !platforms[platform]:
		return nil, errors.NewSubscriptionInvalidError("platform must be ios, android or web")
	}

	sub := &models.PushSubscription{
		BeneficiaryID: beneficiaryID,
		Token:         token,
		Platform:      platform,
		DeviceID:      deviceID,
		IsActive:      true,
	}
	err := m.db.QueryRowContext(ctx, queryUpsertSubscription,
		uuid.NewString(), beneficiaryID, token, platform, deviceID, m.now(),
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("register subscription", err)
	}

	m.logger.Info("subscription registered", map[string]interface{}{
		"subscriptionId": sub.ID,
		"beneficiaryId":  beneficiaryID,
		"platform":       platform,
	})
	return sub, nil
}

// Unregister deactivates the caller's own token, e.g. on sign-out.
func (m *Manager) Unregister(ctx context.Context, beneficiaryID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.NewSubscriptionInvalidError("token is required")
	}
	if _, err := m.db.ExecContext(ctx, queryUnregister, beneficiaryID, token, m.now()); err != nil {
		return errors.NewDatabaseQueryFailedError("unregister subscription", err)
	}
	return nil
}
