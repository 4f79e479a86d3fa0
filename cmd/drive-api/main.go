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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-drive-api/api/swagger"
	"github.com/noah-isme/sma-drive-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-drive-api/internal/middleware"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	"github.com/noah-isme/sma-drive-api/internal/service"
	"github.com/noah-isme/sma-drive-api/pkg/bandwidth"
	"github.com/noah-isme/sma-drive-api/pkg/cache"
	"github.com/noah-isme/sma-drive-api/pkg/config"
	"github.com/noah-isme/sma-drive-api/pkg/database"
	"github.com/noah-isme/sma-drive-api/pkg/events"
	"github.com/noah-isme/sma-drive-api/pkg/jobs"
	"github.com/noah-isme/sma-drive-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-drive-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-drive-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-drive-api/pkg/storage"
)

// @title SMA Drive API
// @version 1.0.0
// @description Per-user drive: folders, files, trash, quota, bulk operations and copy requests.
// @BasePath /api/v1
// @schemes http
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
		logr.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	content, err := storage.NewContentStore(ctx, cfg.Content)
	if err != nil {
		return fmt.Errorf("init content store: %w", err)
	}

	metrics := service.NewMetricsService()
	publisher := events.New(cfg.Events, logr.Named("events"))
	defer publisher.Close() //nolint:errcheck

	contentQueue := jobs.NewQueue("content-gc", service.ContentDeleteHandler(content), jobs.QueueConfig{
		Workers:    cfg.Jobs.ContentGCWorkers,
		MaxRetries: cfg.Jobs.ContentGCRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr.Named("content-gc"),
	})
	eventQueue := jobs.NewQueue("activity-events", service.ActivityPublishHandler(publisher), jobs.QueueConfig{
		Workers:    1,
		MaxRetries: 1,
		RetryDelay: time.Second,
		Logger:     logr.Named("activity-events"),
	})
	metrics.TrackQueue("content-gc", contentQueue.Stats)
	metrics.TrackQueue("activity-events", eventQueue.Stats)
	contentQueue.Start(ctx)
	eventQueue.Start(ctx)
	defer contentQueue.Stop()
	defer eventQueue.Stop()

	handlers := buildHandlers(cfg, logr, db, redisClient, content, metrics, contentQueue, eventQueue)
	authService := service.NewAuthService(cfg.JWT)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.ResponseMeta())

	ops := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis": func(ctx context.Context) error {
			if redisClient == nil {
				return nil
			}
			return redisClient.Ping(ctx).Err()
		},
	})
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handlers, internalmiddleware.JWT(authService))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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

func buildHandlers(
	cfg *config.Config,
	logr *zap.Logger,
	db *sqlx.DB,
	redisClient *redis.Client,
	content storage.ContentStore,
	metrics *service.MetricsService,
	contentQueue *jobs.Queue,
	eventQueue *jobs.Queue,
) handler.Handlers {
	validate := validator.New()

	driveRepo := repository.NewDriveRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	fileRepo := repository.NewFileRepository(db)
	treeRepo := repository.NewTreeRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	requestRepo := repository.NewCopyRequestRepository(db)

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr.Named("cache")),
		metrics,
		cfg.Drive.SummaryCacheTTL,
		logr.Named("cache"),
		redisClient != nil,
	)
	drives := service.NewDriveService(driveRepo, cacheSvc, service.DriveServiceConfig{
		DefaultStorageLimit: cfg.Drive.DefaultStorageLimit,
		SummaryTTL:          cfg.Drive.SummaryCacheTTL,
	}, logr.Named("drive"))
	quota := service.NewQuotaService(driveRepo, drives, metrics, logr.Named("quota"))
	activity := service.NewActivityService(activityRepo, drives, eventQueue, logr.Named("activity"))
	remover := service.NewContentRemover(content, contentQueue, logr.Named("content"))
	walker := service.NewTreeWalker(folderRepo, fileRepo)

	folders := service.NewFolderService(service.FolderServiceParams{
		Folders:        folderRepo,
		Files:          fileRepo,
		Tree:           treeRepo,
		Walker:         walker,
		Activity:       activity,
		Drives:         drives,
		Validator:      validate,
		DefaultFolders: cfg.Drive.DefaultFolders,
		Logger:         logr.Named("folders"),
	})
	files := service.NewFileService(service.FileServiceParams{
		Files:     fileRepo,
		Folders:   folderRepo,
		Drives:    drives,
		Owners:    driveRepo,
		Content:   content,
		Quota:     quota,
		Remover:   remover,
		Signer:    storage.NewSignedURLSigner(cfg.Links.SigningSecret, cfg.Links.TTL),
		Bandwidth: bandwidth.New(cfg.Bandwidth, redisClient),
		Activity:  activity,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr.Named("files"),
		Config: service.FileServiceConfig{
			MaxUploadSize: cfg.Drive.MaxUploadSize,
			LinkBaseURL:   cfg.Links.BaseURL,
		},
	})
	trash := service.NewTrashService(service.TrashServiceParams{
		Folders:  folderRepo,
		Files:    fileRepo,
		Tree:     treeRepo,
		Walker:   walker,
		Quota:    quota,
		Content:  remover,
		Activity: activity,
		Drives:   drives,
		Summary:  drives,
		Logger:   logr.Named("trash"),
	})
	bulk := service.NewBulkService(service.BulkServiceParams{
		Folders:   folders,
		Files:     files,
		Trash:     trash,
		Drives:    drives,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr.Named("bulk"),
	})
	copies := service.NewCopyRequestService(service.CopyRequestServiceParams{
		Requests:   requestRepo,
		Folders:    folderRepo,
		Files:      fileRepo,
		Duplicator: files,
		Walker:     walker,
		Tree:       treeRepo,
		Quota:      quota,
		Remover:    remover,
		Activity:   activity,
		Drives:     drives,
		Owners:     drives,
		Metrics:    metrics,
		Validator:  validate,
		Logger:     logr.Named("copy-requests"),
	})

	return handler.Handlers{
		Drive:       handler.NewDriveHandler(drives, trash),
		Folders:     handler.NewFolderHandler(folders, trash),
		Files:       handler.NewFileHandler(files, trash),
		Bulk:        handler.NewBulkHandler(bulk),
		CopyRequest: handler.NewCopyRequestHandler(copies),
		Activity:    handler.NewActivityHandler(activity),
	}
}
