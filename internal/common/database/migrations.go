package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema holds the DDL statements for the tables this service reads and writes,
// applied in order. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS organization_members (
		organization_id UUID NOT NULL,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		PRIMARY KEY (organization_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS organization_beneficiaries (
		organization_id UUID NOT NULL,
		beneficiary_id TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (organization_id, beneficiary_id)
	)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id UUID PRIMARY KEY,
		beneficiary_id TEXT NOT NULL,
		token TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		device_id TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (beneficiary_id, token)
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		organization_id UUID NOT NULL,
		title VARCHAR(65) NOT NULL,
		body VARCHAR(240) NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft'
			CHECK (status IN ('draft', 'sending', 'sent', 'failed')),
		sent_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		sent_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_org_created
		ON notifications (organization_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS organization_notification_limits (
		organization_id UUID PRIMARY KEY,
		plan_type TEXT NOT NULL DEFAULT 'free',
		daily_limit INTEGER NOT NULL,
		monthly_limit INTEGER NOT NULL,
		min_hours_between_notifications INTEGER NOT NULL,
		notifications_sent_today INTEGER NOT NULL DEFAULT 0,
		notifications_sent_this_month INTEGER NOT NULL DEFAULT 0,
		last_notification_sent_at TIMESTAMPTZ,
		reset_daily_at TIMESTAMPTZ NOT NULL,
		reset_monthly_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate applies Schema inside a single transaction.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range Schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
