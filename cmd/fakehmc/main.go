package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jeomhps/hmc-go/internal/config"
	"github.com/Jeomhps/hmc-go/internal/db"
	"github.com/Jeomhps/hmc-go/internal/fakehmc"
	"github.com/Jeomhps/hmc-go/internal/logging"
)

func main() {
	cfg := config.LoadServer()

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer store.Close()

	if cfg.AdminPassword != "" {
		if err := db.EnsureDefaultAdmin(ctx, store, cfg.AdminUserID, cfg.AdminPassword); err != nil {
			logger.Error("ensure default admin", zap.Error(err))
		}
	} else {
		logger.Warn("FAKEHMC_ADMIN_PASSWORD not set, no user can log on unless one exists in the store")
	}

	if cfg.SeedFile != "" {
		seed, err := fakehmc.LoadSeed(cfg.SeedFile)
		if err != nil {
			logger.Fatal("load seed", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		n, err := seed.Apply(ctx, store)
		if err != nil {
			logger.Fatal("apply seed", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		logger.Info("seeded resources", zap.String("file", cfg.SeedFile), zap.Int("added", n))
	}

	reaper := fakehmc.Reaper{Store: store, Retention: cfg.JobRetention, Log: logger}
	go reaper.Run(ctx, cfg.ReapInterval)

	gin.SetMode(gin.ReleaseMode)
	srv := fakehmc.New(fakehmc.Options{
		Store:      store,
		JWTSecret:  cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		HMCName:    cfg.HMCName,
		Logger:     logger,
	})
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("serve", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Server, logger *zap.Logger) (db.Store, error) {
	switch cfg.Store {
	case "memory":
		return db.NewMemory(), nil
	case "mysql":
		s, err := db.OpenSQL(ctx, cfg.DSN(), time.Minute)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx, cfg.DBLockName, cfg.DBLockTimeout); err != nil {
			_ = s.Close()
			return nil, err
		}
		logger.Info("connected to mysql", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
		return s, nil
	default:
		return nil, errors.New("unknown store " + cfg.Store + " (memory, mysql)")
	}
}
