package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"docarchive/internal/caching"
	"docarchive/internal/config"
	"docarchive/internal/handlers"
	"docarchive/internal/jobs"
	"docarchive/internal/jobs/background"
	"docarchive/internal/middleware"
	"docarchive/internal/repositories"
	"docarchive/internal/services"
	"docarchive/pkg/database"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := config.NewLogger(cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.JWTSecretFromEnv {
		if cfg.IsProduction() {
			return errors.New("JWT_SECRET is required in production")
		}
		logger.Warn("JWT_SECRET not set, using a generated secret")
	}

	policy, err := config.LoadStoragePolicy(cfg.StoragePolicyFile)
	if err != nil {
		return err
	}

	if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
		return err
	}
	pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	cacheSvc := caching.NewRedisCacheService(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)

	blobStore, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	// Repositories
	txManager := repositories.NewTxManager(pool, logger)
	locationRepo := repositories.NewStorageLocationRepository(pool)
	fileRepo := repositories.NewFileRepository(pool)
	directoryRepo := repositories.NewDirectoryRepository(pool)
	transactionRepo := repositories.NewTransactionLogRepository(pool)

	// Services
	txLog := services.NewTransactionLogService(transactionRepo, logger)
	allocator := services.NewCapacityAllocator(txManager, locationRepo, fileRepo, directoryRepo,
		blobStore, cacheSvc, txLog, policy, logger)
	adminSvc := services.NewStorageAdminService(txManager, locationRepo, fileRepo, directoryRepo,
		blobStore, cacheSvc, txLog, policy.Admin, logger)
	treeSvc := services.NewStorageTreeService(locationRepo, fileRepo, directoryRepo, cacheSvc, logger)
	// Migrations may change the tree read model.
	if err := treeSvc.ResetSnapshots(ctx); err != nil {
		logger.Warn("Failed to reset tree snapshots", zap.Error(err))
	}

	// Background monitor
	monitor := jobs.NewStorageMonitor(treeSvc, txLog, cfg.CapacityWarningRatio, logger)
	scheduler, err := background.NewJobScheduler(monitor, cfg.MonitorInterval, logger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("failed to stop job scheduler", zap.Error(err))
		}
	}()

	// Handlers
	storageHandlers := handlers.NewStorageHandlers(allocator, adminSvc, treeSvc, logger)
	transactionHandlers := handlers.NewTransactionLogHandlers(txLog, logger)
	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc, blobStore, version)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())

	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/health/detailed", healthHandlers.DetailedHealthCheck)

	v1 := versionMiddleware.VersionRoute(e, "v1")
	v1.Use(echojwt.WithConfig(middleware.NewJWTConfig(cfg.JWTSecret)), middleware.ActorFromToken())

	storageHandlers.RegisterRoutes(v1)
	v1.GET("/storage/transactions", transactionHandlers.ListTransactions)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("docarchive server starting", zap.String("version", version), zap.Int("port", cfg.Port))
		if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (services.BlobStore, error) {
	if cfg.BlobBackend == config.BlobBackendLocal {
		return services.NewLocalBlobStore(cfg.BlobBasePath)
	}
	return services.NewMinioBlobStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
		cfg.MinioUseSSL, cfg.MinioBucket)
}
