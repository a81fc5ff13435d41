package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"honeypot-guard/internal/bot"
	"honeypot-guard/internal/config"
	"honeypot-guard/internal/modules/audit"
	"honeypot-guard/internal/storage"
	"honeypot-guard/internal/tracker"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(store, logger)
	trackerStore := tracker.New(tracker.Config{
		DeltaInterval:       time.Duration(cfg.Detection.DeltaIntervalSeconds) * time.Second,
		MinMsgLength:        cfg.Detection.MinMsgLength,
		LinkRequired:        cfg.Detection.LinkRequired,
		SimilarityThreshold: cfg.Detection.SimilarityThreshold,
		HoneypotChannel:     cfg.Detection.HoneypotChannel,
	})

	botSvc, err := bot.New(cfg, logger, store, trackerStore, auditLogger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started",
		zap.String("honeypot_channel", cfg.Detection.HoneypotChannel),
		zap.Int("past_interval_seconds", cfg.Sweep.PastIntervalSeconds),
		zap.Int("future_interval_seconds", cfg.Sweep.FutureIntervalSeconds))

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
