package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/fieldsync-api/api/swagger"
	"github.com/noah-isme/fieldsync-api/internal/handler"
	"github.com/noah-isme/fieldsync-api/internal/migrations"
	"github.com/noah-isme/fieldsync-api/internal/repository"
	"github.com/noah-isme/fieldsync-api/internal/router"
	"github.com/noah-isme/fieldsync-api/internal/service"
	"github.com/noah-isme/fieldsync-api/pkg/cache"
	"github.com/noah-isme/fieldsync-api/pkg/config"
	"github.com/noah-isme/fieldsync-api/pkg/database"
	"github.com/noah-isme/fieldsync-api/pkg/logger"
	"github.com/noah-isme/fieldsync-api/pkg/storage"
)

// @title FieldSync API
// @version 1.0.0
// @description Offline submission sync and multipart upload coordination for field data collection.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const localStoreMaxBody = 512 << 20

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

	ctx := context.Background()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Migrations.AutoMigrate {
		if err := database.Migrate(ctx, db.DB, migrations.Migrations); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
		logr.Info("database migrations applied")
	}

	metrics := service.NewMetricsService()
	readiness := map[string]handler.Pinger{"postgres": db}

	var cacheRepo interface {
		service.CacheRepository
		Close() error
	}
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		readiness["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	} else {
		cacheRepo = repository.NewMemoryCacheRepository(cache.NewMemory(cfg.Cache.TTL))
	}
	defer cacheRepo.Close() //nolint:errcheck

	store, local, err := newObjectStore(ctx, cfg)
	if err != nil {
		logr.Fatal("failed to init object store", zap.Error(err), zap.String("driver", cfg.ObjectStore.Driver))
	}

	validate := validator.New()

	submissionRepo := repository.NewSubmissionRepository(db)
	objectRepo := repository.NewObjectRecordRepository(db)
	queueRepo := repository.NewSyncQueueRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)
	catalogSvc := service.NewCatalogService(catalogRepo, cacheSvc, logr)
	tracker := service.NewSyncTracker(queueRepo, logr, service.SyncTrackerConfig{
		CompletedWindow: cfg.Sync.CompletedWindow,
		CompletedLimit:  cfg.Sync.CompletedLimit,
	})
	submissionSvc := service.NewSubmissionService(service.SubmissionServiceParams{
		UnitOfWork:  repository.NewUnitOfWork(db),
		Submissions: submissionRepo,
		Objects:     objectRepo,
		Store:       store,
		Catalog:     catalogSvc,
		Audit:       auditRepo,
		Tracker:     tracker,
		Metrics:     metrics,
		Validator:   validate,
		Logger:      logr,
		Config: service.SubmissionServiceConfig{
			AllowReviewStatusOnSync: cfg.Sync.AllowReviewStatus,
			MaxBatchItems:           cfg.Sync.MaxBatchItems,
		},
	})
	uploadSvc := service.NewUploadService(store, objectRepo, submissionRepo, catalogSvc, metrics, validate, logr, service.UploadServiceConfig{
		PartURLTTL:     cfg.Uploads.PartURLTTL,
		DownloadURLTTL: cfg.Uploads.DownloadURLTTL,
	})
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	handlers := router.Handlers{
		Sync:       handler.NewSyncHandler(submissionSvc, tracker),
		Submission: handler.NewSubmissionHandler(submissionSvc),
		Upload:     handler.NewUploadHandler(uploadSvc),
		Health:     handler.NewMetricsHandler(metrics, readiness),
	}
	if local != nil {
		handlers.Storage = handler.NewStorageHandler(local, localStoreMaxBody)
	}

	opts := router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logr,
		Auth:           authSvc,
		Audit:          auditRepo,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.NewRouter(opts, handlers),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("storage", cfg.ObjectStore.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}

// newObjectStore returns the configured store. local is non-nil only for the
// filesystem driver, whose signed URLs are served by this process.
func newObjectStore(ctx context.Context, cfg *config.Config) (storage.ObjectStore, *storage.LocalStore, error) {
	oc := cfg.ObjectStore
	switch oc.Driver {
	case config.StorageDriverS3:
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:       oc.Bucket,
			Region:       oc.Region,
			Endpoint:     oc.Endpoint,
			AccessKey:    oc.AccessKey,
			SecretKey:    oc.SecretKey,
			UsePathStyle: oc.UsePathStyle,
		})
		if err != nil {
			return nil, nil, err
		}
		return s3Store, nil, nil
	case config.StorageDriverLocal, "":
		localStore, err := storage.NewLocalStore(storage.LocalStoreConfig{
			BaseDir: oc.LocalDir,
			Bucket:  oc.Bucket,
			BaseURL: oc.PublicBaseURL + "/" + strings.Trim(cfg.APIPrefix, "/") + "/storage/objects",
			Signer:  storage.NewSignedURLSigner(oc.SignedURLSecret, cfg.Uploads.PartURLTTL),
		})
		if err != nil {
			return nil, nil, err
		}
		return localStore, localStore, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", oc.Driver)
	}
}

