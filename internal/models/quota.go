package models

import "time"

type PlanType string

const (
	PlanFree    PlanType = "free"
	PlanLight   PlanType = "light"
	PlanPro     PlanType = "pro"
	PlanPremium PlanType = "premium"
)

// OrganizationQuota is the per-organization send ledger.
type OrganizationQuota struct {
	OrganizationID             string     `json:"organizationId"`
	PlanType                   PlanType   `json:"planType"`
	DailyLimit                 int        `json:"dailyLimit"`
	MonthlyLimit               int        `json:"monthlyLimit"`
	MinHoursBetweenSends       int        `json:"minHoursBetweenNotifications"`
	NotificationsSentToday     int        `json:"notificationsSentToday"`
	NotificationsSentThisMonth int        `json:"notificationsSentThisMonth"`
	LastNotificationSentAt     *time.Time `json:"lastNotificationSentAt,omitempty"`
	ResetDailyAt               time.Time  `json:"resetDailyAt"`
	ResetMonthlyAt             time.Time  `json:"resetMonthlyAt"`
	UpdatedAt                  time.Time  `json:"updatedAt"`
}

// CanSend is true while both counters have headroom and the cooldown since
// the last send has elapsed.
func (q *OrganizationQuota) CanSend(now time.Time) bool {
	if q.NotificationsSentToday >= q.DailyLimit {
		return false
	}
	if q.NotificationsSentThisMonth >= q.MonthlyLimit {
		return false
	}
	return q.cooldownElapsed(now)
}

func (q *OrganizationQuota) cooldownElapsed(now time.Time) bool {
	if q.LastNotificationSentAt == nil {
		return true
	}
	cooldown := time.Duration(q.MinHoursBetweenSends) * time.Hour
	return now.Sub(*q.LastNotificationSentAt) >= cooldown
}

// NextAllowedAt is the earliest time the cooldown permits another send, or
// nil if there is no pending cooldown.
func (q *OrganizationQuota) NextAllowedAt(now time.Time) *time.Time {
	if q.cooldownElapsed(now) {
		return nil
	}
	next := q.LastNotificationSentAt.Add(time.Duration(q.MinHoursBetweenSends) * time.Hour)
	return &next
}

// QuotaStatus is the quota snapshot returned to callers.
type QuotaStatus struct {
	OrganizationQuota
	CanSendNow    bool       `json:"canSendNow"`
	NextAllowedAt *time.Time `json:"nextAllowedAt,omitempty"`
}

// NewQuotaStatus snapshots q at now.
func NewQuotaStatus(q *OrganizationQuota, now time.Time) *QuotaStatus {
	return &QuotaStatus{
		OrganizationQuota: *q,
		CanSendNow:        q.CanSend(now),
		NextAllowedAt:     q.NextAllowedAt(now),
	}
}
