package models

import "time"

type PushSubscription struct {
	ID            string    `json:"id"`
	BeneficiaryID string    `json:"beneficiaryId"`
	Token         string    `json:"token"`
	Platform      string    `json:"platform"`
	DeviceID      string    `json:"deviceId"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Recipient is one audience member with the subscriptions that can reach them.
type Recipient struct {
	BeneficiaryID string             `json:"beneficiaryId"`
	Tokens        []PushSubscription `json:"tokens"`
}
