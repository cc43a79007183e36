package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/jobboard/internal/api"
	"github.com/dunamismax/jobboard/internal/config"
	"github.com/dunamismax/jobboard/internal/crm"
	"github.com/dunamismax/jobboard/internal/logging"
	"github.com/dunamismax/jobboard/internal/queue"
	"github.com/dunamismax/jobboard/internal/ratelimit"
	"github.com/dunamismax/jobboard/internal/session"
	"github.com/dunamismax/jobboard/internal/storage"
	"github.com/dunamismax/jobboard/internal/store"
	"github.com/dunamismax/jobboard/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
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
	logger = logger.Named("api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "jobboard-api",
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

	deps := api.Deps{
		Logger: logger,
		Jobs:   store.NewFileJobStore(cfg.API.JobsFile),
		CRM:    crm.NewClient(clientConfig(cfg.CRM), logger.Named("crm")),
		Tracer: otel.Tracer("jobboard/api"),
	}

	if cfg.Database.DSN != "" {
		leadStore, err := store.NewPostgresLeadStore(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("connect lead store", zap.Error(err))
		}
		defer leadStore.Close()
		deps.Leads = leadStore
	} else {
		logger.Info("POSTGRES_DSN not set, keeping leads in memory")
	}

	redisClient := connectRedis(ctx, logger, cfg.Queue)
	if redisClient != nil {
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.API.RateLimitPerMin, time.Minute, "")
		if err != nil {
			logger.Fatal("init rate limiter", zap.Error(err))
		}
		deps.RateLimiter = limiter
	} else {
		limiter, err := ratelimit.NewMemoryTokenBucket(cfg.API.RateLimitPerMin, time.Minute)
		if err != nil {
			logger.Fatal("init rate limiter", zap.Error(err))
		}
		deps.RateLimiter = limiter
	}

	switch {
	case cfg.Admin.SessionBackend == "redis" && redisClient != nil:
		sessions, err := session.NewRedisStore(redisClient, cfg.Admin.SessionTTL, "")
		if err != nil {
			logger.Fatal("init session store", zap.Error(err))
		}
		deps.Sessions = sessions
	case cfg.Admin.SessionBackend == "redis":
		logger.Warn("redis unavailable, admin sessions fall back to memory")
		deps.Sessions = session.NewMemoryStore(cfg.Admin.SessionTTL)
	default:
		deps.Sessions = session.NewMemoryStore(cfg.Admin.SessionTTL)
	}
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" {
		logger.Warn("ADMIN_USERNAME or ADMIN_PASSWORD not set, admin login is disabled")
	}

	if cfg.Storage.AccessKey != "" && cfg.Storage.SecretKey != "" {
		storageClient, err := storage.NewClient(storage.Config{
			Endpoint:      cfg.Storage.Endpoint,
			Region:        cfg.Storage.Region,
			Access:        cfg.Storage.AccessKey,
			Secret:        cfg.Storage.SecretKey,
			Bucket:        cfg.Storage.Bucket,
			UseSSL:        cfg.Storage.UseSSL,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
		})
		if err != nil {
			logger.Fatal("init storage client", zap.Error(err))
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := storageClient.EnsureBucket(bucketCtx); err != nil {
			logger.Warn("ensure bucket failed", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		}
		cancel()
		deps.Storage = storageClient
	} else {
		logger.Warn("storage credentials not set, resume uploads are disabled")
	}

	if cfg.Notify.WebhookURL != "" {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Warn("queue client close error", zap.Error(err))
			}
		}()
		deps.Queue = queueClient
	}

	app, err := api.NewServer(api.Config{
		PresignTTL:       cfg.API.PresignTTL,
		MaxUploadBytes:   cfg.API.MaxUploadBytes,
		ResumeKeyPrefix:  cfg.Storage.KeyPrefix,
		AdminUsername:    cfg.Admin.Username,
		AdminPassword:    cfg.Admin.Password,
		SecureCookie:     cfg.Admin.SecureCookie,
		NotifyWebhookURL: cfg.Notify.WebhookURL,
	}, deps)
	if err != nil {
		logger.Fatal("init api server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.API.Addr), zap.String("jobs_file", cfg.API.JobsFile))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func clientConfig(c config.CRMConfig) crm.Config {
	return crm.Config{
		BaseURL:    c.BaseURL,
		APIVersion: c.APIVersion,
		Token:      c.Token,
		LocationID: c.LocationID,
		PipelineID: c.PipelineID,
		StageID:    c.StageID,
		CVFieldID:  c.CVFieldID,
		Timeout:    c.Timeout,
	}
}

// connectRedis returns nil when Redis cannot be reached. Rate limiting then
// runs per process and sessions stay in memory.
func connectRedis(ctx context.Context, logger *zap.Logger, q config.QueueConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable", zap.String("addr", q.RedisAddr), zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}
