// internal/workers/notification/dispatch-notification/models.go
package dispatchnotification

type Input struct {
	NotificationID string `json:"notificationId"`
	OrganizationID string `json:"organizationId"`
}

type Output struct {
	SentCount   int    `json:"sentCount"`
	FailedCount int    `json:"failedCount"`
	Total       int    `json:"total"`
	Status      string `json:"status"`
}
