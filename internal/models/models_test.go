package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to NotificationStatus
		want     bool
	}{
		{StatusDraft, StatusSending, true},
		{StatusSending, StatusSent, true},
		{StatusSending, StatusFailed, true},
		{StatusDraft, StatusSent, false},
		{StatusDraft, StatusFailed, false},
		{StatusSent, StatusDraft, false},
		{StatusSent, StatusSending, false},
		{StatusFailed, StatusSending, false},
		{StatusSending, StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}

	assert.True(t, StatusSent.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusDraft.IsTerminal())
	assert.False(t, NotificationStatus("archived").Valid())
}

func createTestQuota(today, month int, last *time.Time) *OrganizationQuota {
	return &OrganizationQuota{
		OrganizationID:             "org-1",
		PlanType:                   PlanFree,
		DailyLimit:                 1,
		MonthlyLimit:               5,
		MinHoursBetweenSends:       24,
		NotificationsSentToday:     today,
		NotificationsSentThisMonth: month,
		LastNotificationSentAt:     last,
	}
}

func TestOrganizationQuota_CanSend(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name  string
		quota *OrganizationQuota
		want  bool
	}{
		{name: "fresh quota", quota: createTestQuota(0, 0, nil), want: true},
		{name: "daily limit reached", quota: createTestQuota(1, 1, at(48*time.Hour)), want: false},
		{name: "monthly limit reached", quota: createTestQuota(0, 5, at(48*time.Hour)), want: false},
		{name: "within cooldown despite headroom", quota: createTestQuota(0, 1, at(23*time.Hour)), want: false},
		{name: "cooldown exactly elapsed", quota: createTestQuota(0, 1, at(24*time.Hour)), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.quota.CanSend(now))
		})
	}
}

func TestNewQuotaStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)

	status := NewQuotaStatus(createTestQuota(0, 1, &last), now)
	assert.False(t, status.CanSendNow)
	if assert.NotNil(t, status.NextAllowedAt) {
		assert.Equal(t, last.Add(24*time.Hour), *status.NextAllowedAt)
	}

	status = NewQuotaStatus(createTestQuota(0, 0, nil), now)
	assert.True(t, status.CanSendNow)
	assert.Nil(t, status.NextAllowedAt)
}
