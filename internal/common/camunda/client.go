// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"time"

	"loyalty-notify/internal/common/config"
	"loyalty-notify/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

type Client struct {
	client zbc.Client
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 10,
	BaseDelay:  2 * time.Second,
}

// Connect creates a gateway client and waits for the topology call to succeed,
// backing off exponentially between attempts.
func Connect(ctx context.Context, cfg config.CamundaConfig, retry RetryConfig, log logger.Logger) (*Client, error) {
	var zeebeClient zbc.Client

	err := RetryWithBackoff(ctx, retry, log, "Zeebe client initialization", func() error {
		c, err := zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.BrokerAddress,
			UsePlaintextConnection: true,
		})
		if err != nil {
			return err
		}

		topoCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.RequestTimeout))
		defer cancel()
		if _, err := c.NewTopologyCommand().Send(topoCtx); err != nil {
			_ = c.Close()
			return fmt.Errorf("topology request to %s: %w", cfg.BrokerAddress, err)
		}
		zeebeClient = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Client{client: zeebeClient}, nil
}

func (c *Client) GetClient() zbc.Client {
	return c.client
}

// HealthCheck issues a topology request against the gateway.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// RetryWithBackoff runs operation until it succeeds, retries are exhausted or
// ctx is done. The delay doubles after every failed attempt.
func RetryWithBackoff(ctx context.Context, retry RetryConfig, log logger.Logger, operationName string, operation func() error) error {
	var err error
	delay := retry.BaseDelay

	for attempt := 1; attempt <= retry.MaxRetries; attempt++ {
		if err = operation(); err == nil {
			return nil
		}
		if attempt == retry.MaxRetries {
			break
		}

		log.Warn(operationName+" failed, retrying", map[string]interface{}{
			"error":       err,
			"attempt":     attempt,
			"maxRetries":  retry.MaxRetries,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", operationName, attempt, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, retry.MaxRetries, err)
}
