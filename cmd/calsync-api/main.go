package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/chronoplan/calsync-api/api/swagger"
	"github.com/chronoplan/calsync-api/internal/handler"
	"github.com/chronoplan/calsync-api/internal/middleware"
	"github.com/chronoplan/calsync-api/internal/provider"
	"github.com/chronoplan/calsync-api/internal/repository"
	"github.com/chronoplan/calsync-api/internal/scheduler"
	"github.com/chronoplan/calsync-api/internal/service"
	"github.com/chronoplan/calsync-api/pkg/cache"
	"github.com/chronoplan/calsync-api/pkg/config"
	"github.com/chronoplan/calsync-api/pkg/database"
	"github.com/chronoplan/calsync-api/pkg/logger"
	corsmiddleware "github.com/chronoplan/calsync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/chronoplan/calsync-api/pkg/middleware/requestid"
)

// @title CalSync API
// @version 0.1.0
// @description Calendar synchronization and reconciliation engine
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, running without cache", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	eventRepo := repository.NewCalendarEventRepository(db)
	runRepo := repository.NewSyncRunRepository(db)
	summaryRepo := repository.NewCompressedCalendarRepository(db)

	creds := provider.NewFileCredentialStore(cfg.Google, cfg.Google.TokenDir)
	gcal := provider.NewGoogleCalendar(creds, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	fetcher := service.NewFetchService(gcal, cfg.Sync, cfg.Google, logr)
	reconciler := service.NewReconcileService(eventRepo, cfg.Sync.BatchSize, logr)
	compressor := service.NewCompressService(summaryRepo, cacheRepo, cfg.Sync.ModelVersion, logr)
	syncSvc := service.NewSyncService(runRepo, fetcher, reconciler, compressor, eventRepo, summaryRepo, cacheRepo,
		cfg.Google.CalendarID, cfg.Sync, metricsSvc, validate, logr)
	writeBackSvc := service.NewWriteBackService(gcal, cacheRepo, cfg.Google.CalendarID, cfg.WriteBack, metricsSvc, validate, logr)
	auditSvc := service.NewAuditService(runRepo)

	syncHandler := handler.NewSyncHandler(syncSvc, auditSvc)
	eventHandler := handler.NewEventHandler(writeBackSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		calendarGroup := api.Group("/calendar")
		calendarGroup.POST("/sync", syncHandler.Sync)
		calendarGroup.GET("/sync/needed", syncHandler.NeedsSync)
		calendarGroup.GET("/sync/runs", syncHandler.ListRuns)
		calendarGroup.GET("/sync/runs/export", syncHandler.ExportRuns)
		calendarGroup.GET("/summary", syncHandler.Summary)
		calendarGroup.POST("/events", eventHandler.Create)
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(summaryRepo, syncSvc, cfg.Scheduler, cfg.Sync.StalenessThreshold, logr)
		if err := sched.Start(context.Background()); err != nil {
			logr.Sugar().Fatalw("scheduler failed to start", "error", err)
		}
		defer sched.Stop()
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
