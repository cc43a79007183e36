package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/jobboard/internal/config"
	"github.com/dunamismax/jobboard/internal/logging"
	"github.com/dunamismax/jobboard/internal/store"
	"github.com/dunamismax/jobboard/internal/telemetry"
	"github.com/dunamismax/jobboard/internal/webhook"
	"github.com/dunamismax/jobboard/internal/worker"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("worker")

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "jobboard-worker",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}, logger.Named("telemetry"))
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	var leadStore store.LeadStore
	if cfg.Database.DSN == "" {
		logger.Info("no POSTGRES_DSN set; lead delivery status will not be recorded")
	} else {
		pg, err := store.NewPostgresLeadStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("connect lead store", zap.Error(err))
		}
		defer pg.Close()
		leadStore = pg
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Notify.SigningSecret,
		Timeout:        10 * time.Second,
		MaxAttempts:    cfg.Notify.MaxAttempts,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		Logger:         logger.Named("webhook"),
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, webhookClient, leadStore)
	if err != nil {
		logger.Fatal("init worker", zap.Error(err))
	}

	if cfg.Worker.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           srv.MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("starting worker",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.String("queue", cfg.Queue.Name),
		zap.String("redis", cfg.Queue.RedisAddr),
	)
	if err := srv.Run(); err != nil {
		logger.Fatal("worker failed", zap.Error(err))
	}
}
