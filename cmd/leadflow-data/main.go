package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow-data/internal/config"
	"leadflow-data/internal/database"
	httpapi "leadflow-data/internal/http"
	"leadflow-data/internal/logger"
	"leadflow-data/internal/repository"
	"leadflow-data/internal/service"
	"leadflow-data/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "leadflow-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Redis 只承担平台 Schema 读缓存；未启用时 kv 为 nil，Service 直接回源
	var kv store.KV
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis unavailable, schema cache disabled", zap.Error(err))
			_ = redisClient.Close()
			redisClient = nil
		} else {
			kv = store.NewRedisKV(redisClient)
		}
	}

	// Repositories
	platformsRepo := repository.NewPostgresPlatformsRepository(db)
	leadsRepo := repository.NewPostgresLeadsRepository(db)
	activitiesRepo := repository.NewPostgresActivitiesRepository(db)
	assignmentsRepo := repository.NewPostgresAssignmentsRepository(db)
	marketersRepo := repository.NewPostgresMarketersRepository(db)
	sharedLinksRepo := repository.NewPostgresSharedLinksRepository(db)

	// Services
	webhook := service.NewWebhookClient(cfg.Webhook, log)
	platformService := service.NewPlatformService(platformsRepo, kv, log)
	leadService := service.NewLeadService(leadsRepo, activitiesRepo, assignmentsRepo, platformService, log)
	assignmentService := service.NewAssignmentService(leadsRepo, assignmentsRepo, webhook, log)
	shareService := service.NewShareService(sharedLinksRepo, leadsRepo, activitiesRepo, platformsRepo, marketersRepo, platformService, log)
	importService := service.NewImportService(leadService, platformService, log)
	analyticsService := service.NewAnalyticsService(db, marketersRepo, log)

	// Router
	router := httpapi.NewRouter(log)
	router.RegisterLeadRoutes(httpapi.NewLeadHandler(leadService, assignmentService, shareService, log))
	router.RegisterPlatformRoutes(httpapi.NewPlatformHandler(platformService, importService, log))
	router.RegisterMarketerRoutes(httpapi.NewMarketerHandler(assignmentService, log))
	router.RegisterPublicRoutes(httpapi.NewPublicHandler(shareService, log))
	router.RegisterAnalyticsRoutes(httpapi.NewAnalyticsHandler(analyticsService, log))
	router.RegisterHealthRoute()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			log.Error("Server stopped", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
