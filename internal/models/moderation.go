package models

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ModerationVerdict is the classifier's judgment on a title/body pair. It is
// never persisted.
type ModerationVerdict struct {
	IsApproved bool     `json:"isApproved"`
	Reasons    []string `json:"reasons"`
	Severity   Severity `json:"severity"`
}
