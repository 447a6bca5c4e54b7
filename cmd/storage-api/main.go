package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/harborview/dms-storage-api/api/swagger"
	"github.com/harborview/dms-storage-api/internal/handler"
	"github.com/harborview/dms-storage-api/internal/middleware"
	"github.com/harborview/dms-storage-api/internal/models"
	"github.com/harborview/dms-storage-api/internal/repository"
	"github.com/harborview/dms-storage-api/internal/service"
	"github.com/harborview/dms-storage-api/internal/tier"
	"github.com/harborview/dms-storage-api/internal/workers"
	rediscache "github.com/harborview/dms-storage-api/pkg/cache"
	"github.com/harborview/dms-storage-api/pkg/config"
	"github.com/harborview/dms-storage-api/pkg/database"
	"github.com/harborview/dms-storage-api/pkg/logger"
	corsmiddleware "github.com/harborview/dms-storage-api/pkg/middleware/cors"
	reqidmiddleware "github.com/harborview/dms-storage-api/pkg/middleware/requestid"
	"github.com/harborview/dms-storage-api/pkg/storage"
)

// @title DMS Storage API
// @version 1.0.0
// @description Multi-tier document storage orchestration engine
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, usage tracking disabled", zap.Error(err))
		redisClient = nil
	}

	// Tier adapters.
	minioClient, err := tier.NewMinioClient(cfg.Tiers)
	if err != nil {
		logr.Fatal("failed to init cloud storage client", zap.Error(err))
	}

	cloudAdapter := tier.NewMinioAdapter(minioClient, cfg.Tiers.CloudBucket, cfg.Tiers.CloudRegion, string(models.TierCloud), cfg.Tiers.PresignedURLTTL)
	cdnBucket := tier.NewMinioAdapter(minioClient, cfg.Tiers.CDNBucket, cfg.Tiers.CloudRegion, string(models.TierCDN), cfg.Tiers.PresignedURLTTL)
	cdnAdapter := tier.NewCDNAdapter(cdnBucket, cfg.Tiers.CDNBaseURL)

	setupCtx, cancelSetup := context.WithTimeout(ctx, 30*time.Second)
	defer cancelSetup()
	if err := cloudAdapter.EnsureBucket(setupCtx); err != nil {
		logr.Fatal("failed to ensure cloud bucket", zap.Error(err))
	}
	if err := cdnBucket.EnsureBucket(setupCtx); err != nil {
		logr.Fatal("failed to ensure cdn bucket", zap.Error(err))
	}

	signer := storage.NewSignedURLSigner(cfg.SignedURL.Secret, cfg.SignedURL.TTL)
	downloadPrefix := cfg.APIPrefix + "/download"

	cacheAdapter, err := tier.NewLocalAdapter(cfg.Tiers.CacheDir, string(models.TierCache), signer, downloadPrefix)
	if err != nil {
		logr.Fatal("failed to init cache tier", zap.Error(err))
	}
	backupAdapter, err := tier.NewLocalAdapter(cfg.Tiers.BackupDir, string(models.TierBackup), signer, downloadPrefix)
	if err != nil {
		logr.Fatal("failed to init backup tier", zap.Error(err))
	}

	registry := tier.NewRegistry(map[models.Tier]tier.Adapter{
		models.TierCloud:  cloudAdapter,
		models.TierCDN:    cdnAdapter,
		models.TierCache:  cacheAdapter,
		models.TierBackup: backupAdapter,
	}, cfg.Tiers.OperationTimeout)

	// Repositories.
	fileRepo := repository.NewFileRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	workspaceRepo := repository.NewWorkspaceRepository(db)
	queueRepo := repository.NewSyncQueueRepository(db)
	cacheEntryRepo := repository.NewCacheEntryRepository(db)
	protectionRepo := repository.NewProtectionRepository(db)
	automationRepo := repository.NewAutomationRepository(db)

	// Services.
	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(cfg.JWT, logr)
	usageSvc := service.NewUsageService(redisClient, logr)
	workspaceSvc := service.NewWorkspaceService(workspaceRepo, validate, logr)
	permissionSvc := service.NewPermissionService(permissionRepo, fileRepo, workspaceSvc, logr)
	protectionSvc := service.NewProtectionService(protectionRepo, fileRepo, permissionSvc, logr)
	cacheSvc := service.NewCacheService(cacheEntryRepo, locationRepo, cacheAdapter, cfg.Cache, logr)
	queueSvc := service.NewSyncQueueService(queueRepo, locationRepo, fileRepo, versionRepo, registry, cacheSvc, cfg.SyncQueue, logr)
	versionSvc := service.NewVersionService(versionRepo, fileRepo, locationRepo, queueSvc, permissionSvc, protectionSvc, logr)
	duplicateSvc := service.NewDuplicateService(fileRepo, locationRepo, queueSvc, cacheSvc, logr)
	automationSvc := service.NewAutomationService(automationRepo, usageSvc, queueSvc, locationRepo, versionRepo, cfg.Automation, logr)
	orchestratorSvc := service.NewOrchestratorService(
		fileRepo, locationRepo, versionRepo, versionSvc,
		permissionSvc, protectionSvc, duplicateSvc,
		cacheSvc, queueSvc, usageSvc, registry, validate, logr,
	)
	orchestratorSvc.Subscribe(func(evt service.Event) {
		metricsSvc.RecordUpload(string(evt.Type))
	})

	// Handlers.
	localTiers := map[string]*tier.LocalAdapter{
		cacheAdapter.Name():  cacheAdapter,
		backupAdapter.Name(): backupAdapter,
	}
	storageHandler := handler.NewStorageHandler(orchestratorSvc, signer, localTiers)
	versionHandler := handler.NewVersionHandler(versionSvc)
	permissionHandler := handler.NewPermissionHandler(permissionSvc)
	protectionHandler := handler.NewProtectionHandler(protectionSvc)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceSvc)
	queueHandler := handler.NewQueueHandler(queueSvc)
	automationHandler := handler.NewAutomationHandler(automationSvc)
	duplicateHandler := handler.NewDuplicateHandler(duplicateSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db, redisClient)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Token downloads authorize themselves via the signed token.
	api.GET("/download", storageHandler.DownloadToken)

	public := api.Group("", middleware.OptionalJWT(authSvc))
	{
		public.GET("/files/:id", storageHandler.Get)
		public.GET("/files/:id/url", storageHandler.ServeURL)
		public.GET("/files/:id/download", storageHandler.Download)
	}

	authed := api.Group("", middleware.JWT(authSvc))
	{
		authed.POST("/files", storageHandler.Upload)
		authed.POST("/files/:id/content", storageHandler.Replace)
		authed.PATCH("/files/:id/visibility", storageHandler.SetVisibility)
		authed.DELETE("/files/:id", storageHandler.Delete)

		authed.GET("/files/:id/versions", versionHandler.List)
		authed.GET("/files/:id/versions/compare", versionHandler.Compare)
		authed.GET("/files/:id/versions/summary", versionHandler.Summary)
		authed.POST("/files/:id/versions/revert", versionHandler.Revert)
		authed.POST("/files/:id/versions/prune", versionHandler.Prune)

		authed.GET("/files/:id/permissions", permissionHandler.List)
		authed.GET("/files/:id/permissions/check", permissionHandler.Check)
		authed.PUT("/files/:id/permissions/owner", permissionHandler.SetOwner)
		authed.POST("/files/:id/permissions/groups", permissionHandler.GrantGroup)
		authed.PUT("/files/:id/permissions/world", permissionHandler.SetWorld)

		authed.PUT("/files/:id/protection", protectionHandler.Protect)
		authed.DELETE("/files/:id/protection", protectionHandler.Unprotect)
		authed.POST("/files/:id/protection/override", protectionHandler.Override)
		authed.POST("/files/:id/protection/status", protectionHandler.ApplyStatus)
		authed.GET("/files/:id/protection/history", protectionHandler.History)

		authed.POST("/files/:id/move", automationHandler.MoveFile)

		authed.POST("/workspaces", workspaceHandler.Create)
		authed.POST("/workspaces/:id/members", workspaceHandler.GrantAccess)
		authed.GET("/workspaces/:id/access", workspaceHandler.Access)
		authed.GET("/workspaces/:id/ancestors", workspaceHandler.Ancestors)
	}

	admin := api.Group("", middleware.JWT(authSvc), middleware.RequireAdmin())
	{
		admin.POST("/queue", queueHandler.Enqueue)
		admin.GET("/queue/stats", queueHandler.Stats)
		admin.GET("/queue/:id", queueHandler.Get)
		admin.POST("/queue/drain", queueHandler.Drain)
		admin.POST("/queue/clean", queueHandler.Clean)

		admin.GET("/automation/presets", automationHandler.Presets)
		admin.GET("/automation/preset", automationHandler.ActivePreset)
		admin.PUT("/automation/preset", automationHandler.SetActivePreset)
		admin.PUT("/automation/preset/custom", automationHandler.SetCustomRules)
		admin.POST("/automation/run", automationHandler.Run)
		admin.GET("/automation/log", automationHandler.Log)

		admin.GET("/duplicates", duplicateHandler.Groups)
		admin.POST("/duplicates/merge", duplicateHandler.Merge)
	}

	runner := workers.NewRunner(queueSvc, automationSvc, cacheSvc, metricsSvc, cfg, logr)
	runner.Start(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}
