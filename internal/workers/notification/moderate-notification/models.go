// internal/workers/notification/moderate-notification/models.go
package moderatenotification

type Input struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Output is flattened into process variables so gateways can branch on
// isApproved directly.
type Output struct {
	IsApproved bool     `json:"isApproved"`
	Reasons    []string `json:"reasons"`
	Severity   string   `json:"severity"`
}
