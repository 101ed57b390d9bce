package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dairy-portal-api/api/swagger"
	"github.com/noah-isme/dairy-portal-api/internal/handler"
	"github.com/noah-isme/dairy-portal-api/internal/repository"
	"github.com/noah-isme/dairy-portal-api/internal/router"
	"github.com/noah-isme/dairy-portal-api/internal/service"
	"github.com/noah-isme/dairy-portal-api/pkg/cache"
	"github.com/noah-isme/dairy-portal-api/pkg/config"
	"github.com/noah-isme/dairy-portal-api/pkg/database"
	"github.com/noah-isme/dairy-portal-api/pkg/logger"
	"github.com/noah-isme/dairy-portal-api/pkg/storage"
)

// @title Dairy Sustainability Portal API
// @version 1.0.0
// @description Templates, uploads and the admin/user draft review exchange
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	blobs, err := storage.NewBlobStore(ctx, cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}

	userRepo := repository.NewUserRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	uploadRepo := repository.NewUploadRepository(db)
	draftRepo := repository.NewDraftRepository(db)
	reportRepo := repository.NewReportRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	policy := service.FilePolicy{MaxSizeBytes: cfg.Storage.MaxFileSizeBytes, AllowedMIMEs: cfg.Storage.AllowedMIMEs}

	activity := service.NewActivityService(activityRepo, cfg.Activity, logr)
	activity.Start(ctx)
	defer activity.Stop()

	authSvc := service.NewAuthService(userRepo, validate, activity, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, activity, logr)
	templateSvc := service.NewTemplateService(templateRepo, blobs, policy, cacheSvc, validate, activity, logr)
	uploadSvc := service.NewUploadService(service.UploadServiceDeps{
		Repo:      uploadRepo,
		Templates: templateRepo,
		Reports:   reportRepo,
		Blobs:     blobs,
		Policy:    policy,
		Metrics:   metrics,
		Validator: validate,
		Activity:  activity,
		Logger:    logr,
	})
	draftSvc := service.NewDraftService(service.DraftServiceDeps{
		Store:     draftRepo,
		Uploads:   uploadRepo,
		Users:     userRepo,
		Templates: templateRepo,
		Blobs:     blobs,
		Policy:    policy,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Activity:  activity,
		Logger:    logr,
	})
	reportSvc := service.NewReportService(reportRepo, logr)
	exportSvc := service.NewExportService(
		reportRepo,
		exportFiles,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{PublicBaseURL: cfg.PublicBaseURL, APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		metrics,
		activity,
		logr,
	)
	exportSvc.StartCleanup(ctx, cfg.Exports.CleanupInterval)

	checks := map[string]handler.Pinger{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	opts := router.Options{Config: cfg, Logger: logr, Tokens: authSvc, Metrics: metrics}
	if local, ok := blobs.(*storage.LocalBlobStore); ok {
		opts.LocalFilesDir = local.Dir()
	}
	engine := router.New(ctx, opts, router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(userSvc),
		Templates: handler.NewTemplateHandler(templateSvc),
		Uploads:   handler.NewUploadHandler(uploadSvc),
		Drafts:    handler.NewDraftHandler(draftSvc),
		Reports:   handler.NewReportHandler(reportSvc),
		Activity:  handler.NewActivityHandler(activity),
		Exports:   handler.NewExportHandler(exportSvc),
		Metrics:   handler.NewMetricsHandler(metrics, checks, logr),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
