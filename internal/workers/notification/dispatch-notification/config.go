// internal/workers/notification/dispatch-notification/config.go
package dispatchnotification

import (
	"time"

	"loyalty-notify/internal/common/config"
	"loyalty-notify/internal/common/validation"
)

type Config struct {
	Timeout time.Duration
	// InputSchema comes from the activity registry; nil skips the check.
	InputSchema *validation.Schema
}

func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Config{Timeout: timeout}
}
