package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tipwall/config"
	"tipwall/internal/database"
	"tipwall/internal/dedupe"
	"tipwall/internal/logger"
	"tipwall/internal/metrics"
	"tipwall/internal/router"
	"tipwall/internal/scheduler"
	"tipwall/internal/service"
	"tipwall/pkg/cloudinary"
	"tipwall/pkg/solana"
)

func main() {
	cfg := config.Load()
	log := logger.New(&cfg.Log, cfg.Server.Env)

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	vault, err := solana.NewVaultClient(solana.VaultConfig{
		RPCURL:             cfg.Solana.RPCURL,
		PrivateKey:         cfg.Solana.VaultPrivateKey,
		TransfersPerSecond: cfg.Solana.TransferRPS,
		ConfirmTimeout:     cfg.Solana.ConfirmTimeout,
	})
	if err != nil {
		log.Fatalf("vault: %v", err)
	}
	if cfg.Solana.FeeAddress == "" {
		cfg.Solana.FeeAddress = vault.Address()
	} else if err := solana.ValidateAddress(cfg.Solana.FeeAddress); err != nil {
		log.Fatalf("fee address: %v", err)
	}
	log.WithField("vault", vault.Address()).Info("[Solana] Vault loaded")

	deps := router.Deps{Wallet: vault, Metrics: metrics.New(), Logger: log}

	if cfg.Redis.URL != "" {
		store, err := dedupe.NewRedisStore(cfg.Redis.URL, cfg.Webhook.DedupeTTL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := store.Ping(pingCtx); err != nil {
			log.WithError(err).Warn("[Redis] Ping failed, webhook dedupe will retry per request")
		}
		cancel()
		defer store.Close()
		deps.Dedupe = store
		log.Info("[Redis] Webhook dedupe enabled")
	}

	if fcm := service.NewFCMService(context.Background(), cfg.Firebase.ServiceAccountPath, log); fcm != nil {
		deps.FCM = fcm
		log.Info("[FCM] Push notifications enabled")
	} else {
		log.Info("[FCM] Push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}

	if cfg.Cloudinary.CloudName != "" {
		cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
		if err != nil {
			log.Fatalf("cloudinary: %v", err)
		}
		deps.Cloud = cloud
	}

	app := router.Setup(cfg, db, deps)

	stop := make(chan struct{})
	go app.Limiter.Cleanup(stop)

	var sched *scheduler.Scheduler
	if cfg.Cron.Schedule != "" {
		sched, err = scheduler.New(cfg.Cron.Schedule, app.Sweep, 5*time.Minute, log)
		if err != nil {
			log.Fatalf("cron schedule: %v", err)
		}
		sched.Start()
		log.WithField("schedule", cfg.Cron.Schedule).Info("[Scheduler] Sweep scheduled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down...")
	close(stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop(ctx)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("server shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}
