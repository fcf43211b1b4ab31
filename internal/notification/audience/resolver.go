// Package audience computes who receives an organization's notifications.
package audience

import (
	"context"
	"database/sql"

	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/models"
)

// queryAudience lists active subscriptions of active members. Members without
// an active subscription produce no rows.
const queryAudience = `
	SELECT ob.beneficiary_id, ps.id, ps.token, ps.platform, ps.device_id,
		ps.created_at, ps.updated_at
	FROM organization_beneficiaries ob
	JOIN push_subscriptions ps
		ON ps.beneficiary_id = ob.beneficiary_id AND ps.is_active = TRUE
	WHERE ob.organization_id = $1 AND ob.is_active = TRUE
	ORDER BY ob.beneficiary_id, ps.created_at, ps.id`

type Resolver struct {
	db *sql.DB
}

func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the delivery audience grouped by beneficiary, in a stable
// order. An empty audience is not an error.
func (r *Resolver) Resolve(ctx context.Context, organizationID string) ([]models.Recipient, error) {
	rows, err := r.db.QueryContext(ctx, queryAudience, organizationID)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("resolve audience", err)
	}
	defer rows.Close()

	var recipients []models.Recipient
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.BeneficiaryID, &sub.ID, &sub.Token, &sub.Platform,
			&sub.DeviceID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("scan audience", err)
		}
		sub.IsActive = true

		n := len(recipients)
		if n == 0 || recipients[n-1].BeneficiaryID != sub.BeneficiaryID {
			recipients = append(recipients, models.Recipient{BeneficiaryID: sub.BeneficiaryID})
			n++
		}
		recipients[n-1].Tokens = append(recipients[n-1].Tokens, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("iterate audience", err)
	}
	return recipients, nil
}
