// cmd/notify-server/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyalty-notify/internal/api"
	"loyalty-notify/internal/common/auth"
	"loyalty-notify/internal/common/camunda"
	"loyalty-notify/internal/common/config"
	"loyalty-notify/internal/common/observability"
	"loyalty-notify/internal/notification/audience"
	"loyalty-notify/internal/notification/dispatch"
	"loyalty-notify/internal/notification/lifecycle"
	"loyalty-notify/internal/notification/moderation"
	"loyalty-notify/internal/notification/quota"
	"loyalty-notify/internal/notification/report"
	"loyalty-notify/internal/notification/tokens"
	dn "loyalty-notify/internal/workers/notification/dispatch-notification"
	mn "loyalty-notify/internal/workers/notification/moderate-notification"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the job workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx, true)
		if err != nil {
			return err
		}
		defer a.close()
		return serve(ctx, a)
	},
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.log
	log.Info("starting notify-server", map[string]interface{}{
		"version":     Version,
		"environment": cfg.App.Environment,
		"provider":    cfg.Push.Provider,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	db := a.pg.DB
	rdb := a.redis.Client

	pushChannel, err := a.pushChannel(ctx)
	if err != nil {
		return err
	}

	var esClient *elasticsearch.Client
	if a.es != nil {
		esClient = a.es.Client
	}
	reports := report.NewIndexer(esClient, cfg.Database.Elasticsearch.ReportIndex, log)

	ledger := quota.NewLedger(db, cfg.Quota.Plans, log)
	tokenManager := tokens.NewManager(db, log)
	store := lifecycle.NewStore(db)
	batcher := dispatch.NewBatcher(store, audience.NewResolver(db), pushChannel, tokenManager, ledger, reports, obs, log)
	gate := moderation.NewGate(moderation.ConfigFrom(cfg.Moderation), rdb, log)
	service := lifecycle.NewService(store, ledger,
		quota.NewLocker(rdb, config.GetDuration(cfg.Dispatch.LockTTL)), batcher, gate, log)

	health := map[string]func(context.Context) error{
		"postgres": a.pg.Ping,
		"redis":    a.redis.Ping,
	}

	// --- Job workers ---
	var workers []worker.JobWorker
	if cfg.Camunda.Enabled {
		zeebe, err := camunda.Connect(ctx, cfg.Camunda, camunda.DefaultRetryConfig, log)
		if err != nil {
			return err
		}
		defer zeebe.Close()
		health["zeebe"] = zeebe.HealthCheck

		schemas, err := inputSchemas(registryPath, log, dn.TaskType, mn.TaskType)
		if err != nil {
			return err
		}

		dispatchCfg := config.GetWorkerConfig(cfg, dn.TaskType)
		dispatchHandlerCfg := dn.LoadConfig(dispatchCfg)
		dispatchHandlerCfg.InputSchema = schemas[dn.TaskType]

		moderateCfg := config.GetWorkerConfig(cfg, mn.TaskType)
		moderateHandlerCfg := mn.LoadConfig(moderateCfg)
		moderateHandlerCfg.InputSchema = schemas[mn.TaskType]

		for _, w := range []worker.JobWorker{
			camunda.StartWorker(zeebe.GetClient(), dn.TaskType, dispatchCfg,
				dn.NewHandler(dispatchHandlerCfg, service, obs, log), log),
			camunda.StartWorker(zeebe.GetClient(), mn.TaskType, moderateCfg,
				mn.NewHandler(moderateHandlerCfg, gate, obs, log), log),
		} {
			if w != nil {
				workers = append(workers, w)
			}
		}
	}

	// --- HTTP API ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	keycloak := cfg.Auth.Keycloak
	router := api.NewRouter(api.Dependencies{
		Notifications: service,
		Subscriptions: tokenManager,
		Reports:       reports,
		Identity:      auth.NewKeycloakClient(keycloak.URL, keycloak.Realm, config.GetDuration(keycloak.Timeout)),
		Roles:         auth.NewMembershipStore(db),
		Redis:         rdb,
		RateLimit: api.RateLimitSettings{
			Enabled:  cfg.RateLimit.Enabled,
			Requests: cfg.RateLimit.Requests,
			Window:   time.Duration(cfg.RateLimit.Window) * time.Second,
		},
		Health: api.NewHealthHandler(health),
		Logger: log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping", nil)
	case err := <-errCh:
		log.Error("http server failed", map[string]interface{}{"error": err.Error()})
		return err
	}

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	log.Info("notify-server stopped gracefully", nil)
	return nil
}
