package models

import "time"

type NotificationStatus string

const (
	StatusDraft   NotificationStatus = "draft"
	StatusSending NotificationStatus = "sending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

const (
	MaxTitleLength = 65
	MaxBodyLength  = 240
)

// transitions is the closed set of allowed status moves.
var transitions = map[NotificationStatus][]NotificationStatus{
	StatusDraft:   {StatusSending},
	StatusSending: {StatusSent, StatusFailed},
}

// CanTransition reports whether a notification may move from one status to another.
func CanTransition(from, to NotificationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s NotificationStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s NotificationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSending, StatusSent, StatusFailed:
		return true
	}
	return false
}

type Notification struct {
	ID             string             `json:"id"`
	OrganizationID string             `json:"organizationId"`
	Title          string             `json:"title"`
	Body           string             `json:"body"`
	Status         NotificationStatus `json:"status"`
	SentCount      int                `json:"sentCount"`
	FailedCount    int                `json:"failedCount"`
	CreatedBy      string             `json:"createdBy"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
	SentAt         *time.Time         `json:"sentAt,omitempty"`
}

// NotificationDraft is the caller-supplied content of a notification.
type NotificationDraft struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
