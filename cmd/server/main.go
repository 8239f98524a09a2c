package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"income-tax/internal/config"
	apphttp "income-tax/internal/http"
	"income-tax/internal/repository"
	"income-tax/internal/repository/filestore"
	"income-tax/internal/repository/objectstore"
	"income-tax/internal/repository/sqlite"
	"income-tax/internal/service"
	"income-tax/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, keeping %s", cfg.Log.Level, logger.GetLevel())
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := buildCollectionStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup persistence: %v", err)
	}
	defer closeStore()

	if err := store.Init(ctx); err != nil {
		logger.Fatalf("init persistence: %v", err)
	}

	scheme, err := service.NewPasswordScheme(cfg.Auth.PasswordScheme)
	if err != nil {
		logger.Fatalf("password scheme: %v", err)
	}

	taxService := service.NewTaxService(repository.NewRateRepository(store), logger)
	taxService.Bootstrap(ctx)

	userService := service.NewUserService(repository.NewCredentialRepository(store), service.UserServiceConfig{
		Scheme:       scheme,
		SeedUsername: cfg.Auth.SeedUsername,
		SeedPassword: cfg.Auth.SeedPassword,
		Logger:       logger,
	})
	userService.Bootstrap(ctx)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		taxService,
		userService,
		apphttp.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute),
		logger,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildCollectionStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.CollectionStore, func(), error) {
	switch cfg.Persistence.Driver {
	case config.DriverFile:
		logger.Infof("persisting collections under %s", cfg.Persistence.DataDir)
		return filestore.NewStore(cfg.Persistence.DataDir), func() {}, nil
	case config.DriverS3:
		objects, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return objectstore.NewStore(objects, cfg.Storage.Bucket, cfg.Storage.KeyPrefix), func() {}, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Infof("persisting collections in %s", cfg.Database.Path)
		return sqlite.NewCollectionStore(db), func() { db.Close() }, nil
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	client, err := storage.NewS3Client(ctx, storage.ClientOptions{
		Region:   cfg.Storage.Region,
		Profile:  cfg.AWS.Profile,
		Endpoint: cfg.Storage.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("persisting collections in s3://%s/%s (region %s)", cfg.Storage.Bucket, cfg.Storage.KeyPrefix, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
