// Command otpguard-server starts the OTP automation admin API.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/otpguard/internal/config"
	"github.com/and161185/otpguard/internal/filestore"
	"github.com/and161185/otpguard/internal/limiter"
	"github.com/and161185/otpguard/internal/migrate"
	"github.com/and161185/otpguard/internal/repository/postgres"
	httpserver "github.com/and161185/otpguard/internal/server/http"
	"github.com/and161185/otpguard/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves HTTP until SIGINT/SIGTERM.
func main() {
	configFile := flag.String("config", "", "path to a YAML config file (default ./config.yaml if present)")
	envFile := flag.String("env", ".env", "dotenv file loaded before reading the environment")
	flag.Parse()

	cfg, err := config.Load(*configFile, *envFile)
	if err != nil {
		// logger is not configured yet
		boot, _ := zap.NewProduction()
		boot.Fatal("load config", zap.Error(err))
	}

	var logger *zap.Logger
	if cfg.Development() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer db.Close()

	// Repositories
	userRepo := postgres.NewUserRepo(db)
	adminRepo := postgres.NewAdminRepo(db)
	countryRepo := postgres.NewCountryRepo(db)
	scriptRepo := postgres.NewScriptRepo(db)
	taskRepo := postgres.NewTaskRepo(db)

	lim := limiter.NewPG(db.Pool, cfg.LoginWindow, cfg.LoginMaxFails, cfg.LoginBlockFor)

	store, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("file store", zap.Error(err))
	}

	// Services
	authSvc := service.NewAuthService(userRepo, adminRepo, []byte(cfg.JWTKey), cfg.AccessTTL, lim)
	taskSvc := service.NewTaskService(taskRepo)
	catalogSvc := service.NewCatalogService(userRepo, adminRepo, countryRepo, scriptRepo, store, logger)
	dispatchSvc := service.NewDispatchService(scriptRepo, countryRepo, taskSvc, store, logger, service.DispatchOptions{
		CleanupDelay:   cfg.CleanupDelay,
		StrictTemplate: cfg.StrictTemplate,
	})
	defer dispatchSvc.Close()

	if cfg.AdminEmail != "" {
		if err := catalogSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Fatal("bootstrap admin", zap.Error(err))
		}
	}

	app := httpserver.New(authSvc, dispatchSvc, taskSvc, catalogSvc, []byte(cfg.JWTKey), logger, httpserver.Options{
		IPRatePerMin:   cfg.IPRatePerMin,
		MaxUploadBytes: cfg.MaxUploadBytes,
		TrustProxy:     cfg.TrustProxy,
		Ready:          db.Ping,
	})
	defer app.Close()
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		app.Close()
		dispatchSvc.Close()
		db.Close()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newStore(ctx context.Context, cfg *config.Config) (filestore.Store, error) {
	if cfg.StorageBackend == "s3" {
		return filestore.NewS3(ctx, filestore.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	if err := os.MkdirAll(cfg.StorageRoot, 0o750); err != nil {
		return nil, err
	}
	return filestore.NewLocal(cfg.StorageRoot), nil
}
