// cmd/notify-server/app.go
package main

import (
	"context"
	"fmt"

	commonaws "loyalty-notify/internal/common/aws"
	"loyalty-notify/internal/common/camunda"
	"loyalty-notify/internal/common/config"
	"loyalty-notify/internal/common/database"
	"loyalty-notify/internal/common/logger"
	"loyalty-notify/internal/notification/channel"

	"go.uber.org/zap"
)

// app holds the shared infrastructure every command needs.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	pg     *database.PostgresClient
	redis  *database.RedisClient
	es     *database.ElasticsearchClient
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// bootstrap loads configuration and connects to Postgres. Redis and
// Elasticsearch are only opened when withCaches is set.
func bootstrap(ctx context.Context, withCaches bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	a := &app{cfg: cfg, zapLog: zapLog, log: logger.NewZapAdapter(zapLog)}

	err = camunda.RetryWithBackoff(ctx, camunda.RetryConfig{MaxRetries: 15, BaseDelay: camunda.DefaultRetryConfig.BaseDelay}, a.log, "PostgreSQL connection", func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		a.pg = pg
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres failed after retries: %w", err)
	}

	if !withCaches {
		return a, nil
	}

	a.redis, err = database.NewRedis(cfg.Database.Redis)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.redis.Ping(ctx); err != nil {
		a.close()
		return nil, err
	}

	if cfg.Database.Elasticsearch.Enabled() {
		a.es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			a.close()
			return nil, err
		}
		if err := a.es.Ping(ctx); err != nil {
			a.log.Warn("elasticsearch unreachable, dispatch reports will not be indexed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return a, nil
}

// pushChannel builds the configured gateway adapter.
func (a *app) pushChannel(ctx context.Context) (channel.Channel, error) {
	switch a.cfg.Push.Provider {
	case config.PushProviderSNS:
		client, err := commonaws.NewSNSClient(ctx, a.cfg.Push.SNS.Region)
		if err != nil {
			return nil, err
		}
		return channel.NewSNSChannel(client), nil
	default:
		expo := a.cfg.Push.Expo
		return channel.NewExpoChannel(expo.BaseURL, expo.AccessToken, config.GetDuration(expo.Timeout)), nil
	}
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.zapLog != nil {
		_ = a.zapLog.Sync()
	}
}
