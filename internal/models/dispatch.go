package models

import "time"

type DispatchResult struct {
	SentCount   int `json:"sentCount"`
	FailedCount int `json:"failedCount"`
	Total       int `json:"total"`
}

// DispatchReport is the record of one dispatch run kept for analytics.
type DispatchReport struct {
	NotificationID    string             `json:"notificationId"`
	OrganizationID    string             `json:"organizationId"`
	Status            NotificationStatus `json:"status"`
	Provider          string             `json:"provider"`
	Recipients        int                `json:"recipients"`
	Batches           int                `json:"batches"`
	FailedBatches     int                `json:"failedBatches"`
	SentCount         int                `json:"sentCount"`
	FailedCount       int                `json:"failedCount"`
	Total             int                `json:"total"`
	TokensDeactivated int                `json:"tokensDeactivated"`
	StartedAt         time.Time          `json:"startedAt"`
	FinishedAt        time.Time          `json:"finishedAt"`
	Error             string             `json:"error,omitempty"`
}
