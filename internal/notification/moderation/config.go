// internal/notification/moderation/config.go
package moderation

import (
	"time"

	"loyalty-notify/internal/common/config"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	CacheTTL    time.Duration
}

// ConfigFrom converts the moderation section of the application config.
func ConfigFrom(c config.ModerationConfig) Config {
	return Config{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		Timeout:     config.GetDuration(c.Timeout),
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		CacheTTL:    time.Duration(c.CacheTTL) * time.Second,
	}
}

func (c Config) configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}
