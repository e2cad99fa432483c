package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/crewdeck/pkg/allocations"
	"github.com/platinummonkey/crewdeck/pkg/api"
	"github.com/platinummonkey/crewdeck/pkg/audit"
	"github.com/platinummonkey/crewdeck/pkg/auth"
	"github.com/platinummonkey/crewdeck/pkg/authz"
	"github.com/platinummonkey/crewdeck/pkg/config"
	"github.com/platinummonkey/crewdeck/pkg/observability"
	"github.com/platinummonkey/crewdeck/pkg/orgs"
	"github.com/platinummonkey/crewdeck/pkg/projects"
	"github.com/platinummonkey/crewdeck/pkg/roles"
	"github.com/platinummonkey/crewdeck/pkg/storage/postgres"
	"github.com/platinummonkey/crewdeck/pkg/tasks"
	"github.com/platinummonkey/crewdeck/pkg/tenant"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	db, err := postgres.Connect(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}
	if err := roles.SeedPermissions(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to seed permission catalog")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Tenant resolution degrades to per-request defaults without Redis.
		log.WithError(err).Warn("redis unavailable, session tenant caching disabled")
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	appLogger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	// Stores and services
	userStore := auth.NewUserStore(db)
	tokenManager := auth.NewTokenManager(db)
	orgService := orgs.NewPostgresService(db)
	roleStore := roles.NewStore(db)
	projectStore := projects.NewStore(db)
	taskStore := tasks.NewStore(db)
	allocationStore := allocations.NewStore(db)
	auditStore := audit.NewStore(db)

	sessions := tenant.NewRedisSessionStoreFromClient(redisClient, cfg.Redis.SessionTTL)
	resolver := tenant.NewResolver(orgService, userStore, sessions)

	checker := authz.NewPermissionChecker(db, cfg.Auth.PermissionCacheSize, cfg.Auth.PermissionCacheTTL)
	engine := authz.NewEngine(checker, projectStore, taskStore, orgService)
	if metrics != nil {
		resolver.WithObserver(metrics)
		engine.WithObserver(metrics)
		postgres.CollectPoolStats(ctx, db, 0, func(active, idle int) {
			metrics.DBConnectionsActive.Set(float64(active))
			metrics.DBConnectionsIdle.Set(float64(idle))
		})
	}

	server := api.NewServer(api.Deps{
		Orgs:        orgService,
		Users:       userStore,
		Tokens:      tokenManager,
		Roles:       roleStore,
		Projects:    projectStore,
		Tasks:       taskStore,
		Allocations: allocationStore,
		Engine:      engine,
		Checker:     checker,
		Resolver:    resolver,
		Audit:       auditStore,
		Metrics:     metrics,
		Logger:      appLogger,
	})

	// Background cleanup jobs
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.Auth.TokenCleanupSchedule, func() {
		defer observability.RecoverPanic(appLogger, "token cleanup")
		if err := tokenManager.CleanupExpiredTokens(context.Background()); err != nil {
			log.WithError(err).Error("expired token cleanup failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule token cleanup")
	}
	_, err = scheduler.AddFunc(cfg.Auth.InvitationCleanupSchedule, func() {
		defer observability.RecoverPanic(appLogger, "invitation cleanup")
		if err := orgService.CleanupExpiredInvitations(context.Background()); err != nil {
			log.WithError(err).Error("expired invitation cleanup failed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule invitation cleanup")
	}
	_, err = scheduler.AddFunc(cfg.Auth.AuditCleanupSchedule, func() {
		defer observability.RecoverPanic(appLogger, "audit cleanup")
		removed, err := auditStore.Cleanup(context.Background(), cfg.Auth.AuditRetention)
		if err != nil {
			log.WithError(err).Error("audit retention cleanup failed")
			return
		}
		if removed > 0 {
			log.WithField("removed", removed).Info("audit entries past retention removed")
		}
	})
	if err != nil {
		log.WithError(err).Fatal("failed to schedule audit cleanup")
	}
	scheduler.Start()

	apiServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for probes
	healthMux := http.NewServeMux()
	healthChecker := observability.NewHealthChecker(db, redisClient)
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	var group errgroup.Group
	group.Go(func() error {
		log.WithField("addr", apiServer.Addr).Info("crewdeck API listening")
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		log.WithField("addr", healthServer.Addr).Info("health/metrics listening")
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(appLogger, apiServer, cfg.Server.ShutdownTimeout)
	shutdown.OnShutdown("health server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.OnShutdown("cron scheduler", func(ctx context.Context) error {
		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
		}
		return nil
	})
	if err := shutdown.WaitForShutdown(); err != nil {
		log.WithError(err).Error("shutdown did not complete cleanly")
	}
	if err := group.Wait(); err != nil {
		log.WithError(err).Fatal("server error")
	}
}
