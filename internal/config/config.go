package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultStorageEndpoint = "localhost:9000"
	awsS3Endpoint          = "s3.amazonaws.com"
)

type Config struct {
	API       APIConfig       `yaml:"api"`
	Admin     AdminConfig     `yaml:"admin"`
	CRM       CRMConfig       `yaml:"crm"`
	Storage   StorageConfig   `yaml:"storage"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Notify    NotifyConfig    `yaml:"notify"`
	Database  DatabaseConfig  `yaml:"database"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type APIConfig struct {
	Addr            string        `yaml:"addr"`
	JobsFile        string        `yaml:"jobs_file"`
	PresignTTL      time.Duration `yaml:"presign_ttl"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type AdminConfig struct {
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	SessionBackend string        `yaml:"session_backend"`
	SecureCookie   bool          `yaml:"secure_cookie"`
}

type CRMConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIVersion string        `yaml:"api_version"`
	Token      string        `yaml:"token"`
	LocationID string        `yaml:"location_id"`
	PipelineID string        `yaml:"pipeline_id"`
	StageID    string        `yaml:"stage_id"`
	CVFieldID  string        `yaml:"cv_field_id"`
	Timeout    time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Bucket        string `yaml:"bucket"`
	UseSSL        bool   `yaml:"use_ssl"`
	KeyPrefix     string `yaml:"key_prefix"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type QueueConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Name          string `yaml:"name"`
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency int    `yaml:"concurrency"`
	MetricsAddr string `yaml:"metrics_addr"`
}

type NotifyConfig struct {
	WebhookURL    string `yaml:"webhook_url"`
	SigningSecret string `yaml:"signing_secret"`
	MaxAttempts   int    `yaml:"max_attempts"`
}

// DatabaseConfig selects the lead log backend. An empty DSN keeps leads in
// memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type TelemetryConfig struct {
	Exporter     string  `yaml:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	OTLPInsecure bool    `yaml:"otlp_insecure"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Defaults() Config {
	return Config{
		API: APIConfig{
			Addr:            ":8080",
			JobsFile:        "data/jobs.json",
			PresignTTL:      time.Hour,
			MaxUploadBytes:  10 << 20,
			RateLimitPerMin: 30,
			ShutdownTimeout: 10 * time.Second,
		},
		Admin: AdminConfig{
			SessionTTL:     12 * time.Hour,
			SessionBackend: "memory",
		},
		CRM: CRMConfig{
			BaseURL:    "https://services.leadconnectorhq.com",
			APIVersion: "2021-07-28",
			Timeout:    15 * time.Second,
		},
		Storage: StorageConfig{
			Endpoint:  defaultStorageEndpoint,
			Region:    "us-east-1",
			Bucket:    "jobboard-cvs",
			KeyPrefix: "cvs/",
		},
		Queue: QueueConfig{
			RedisAddr: "localhost:6379",
			Name:      "default",
		},
		Worker: WorkerConfig{
			Concurrency: max(2, runtime.NumCPU()),
			MetricsAddr: ":9091",
		},
		Notify: NotifyConfig{
			MaxAttempts: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file named by
// JOBBOARD_CONFIG_FILE and the environment, in increasing precedence. A .env
// file in the working directory is loaded first if present; it never replaces
// variables that are already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path := env("JOBBOARD_CONFIG_FILE", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.API.Addr = env("JOBBOARD_API_ADDR", cfg.API.Addr)
	cfg.API.JobsFile = env("JOBS_FILE", cfg.API.JobsFile)
	cfg.API.PresignTTL = envDuration("UPLOAD_PRESIGN_TTL", cfg.API.PresignTTL)
	cfg.API.MaxUploadBytes = int64(envInt("UPLOAD_MAX_BYTES", int(cfg.API.MaxUploadBytes)))
	cfg.API.RateLimitPerMin = envInt("RATE_LIMIT_PER_MIN", cfg.API.RateLimitPerMin)
	cfg.API.ShutdownTimeout = envDuration("SHUTDOWN_TIMEOUT", cfg.API.ShutdownTimeout)

	cfg.Admin.Username = env("ADMIN_USERNAME", cfg.Admin.Username)
	cfg.Admin.Password = env("ADMIN_PASSWORD", cfg.Admin.Password)
	cfg.Admin.SessionTTL = envDuration("ADMIN_SESSION_TTL", cfg.Admin.SessionTTL)
	cfg.Admin.SessionBackend = strings.ToLower(env("SESSION_BACKEND", cfg.Admin.SessionBackend))
	cfg.Admin.SecureCookie = envBool("ADMIN_SECURE_COOKIE", cfg.Admin.SecureCookie)

	cfg.CRM.BaseURL = env("GHL_BASE_URL", cfg.CRM.BaseURL)
	cfg.CRM.APIVersion = env("GHL_API_VERSION", cfg.CRM.APIVersion)
	cfg.CRM.Token = env("GHL_API_TOKEN", env("GHL_TOKEN", cfg.CRM.Token))
	cfg.CRM.LocationID = env("GHL_LOCATION_ID", cfg.CRM.LocationID)
	cfg.CRM.PipelineID = env("GHL_PIPELINE_ID", cfg.CRM.PipelineID)
	cfg.CRM.StageID = env("GHL_PIPELINE_STAGE_ID", env("GHL_STAGE_ID", cfg.CRM.StageID))
	cfg.CRM.CVFieldID = env("GHL_CV_FIELD_ID", env("GHL_CF_CV_URL", cfg.CRM.CVFieldID))
	cfg.CRM.Timeout = envDuration("GHL_TIMEOUT", cfg.CRM.Timeout)

	cfg.Storage.Endpoint = env("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.Region = env("S3_REGION", cfg.Storage.Region)
	cfg.Storage.AccessKey = env("S3_ACCESS_KEY", env("S3_ACCESS_KEY_ID", cfg.Storage.AccessKey))
	cfg.Storage.SecretKey = env("S3_SECRET_KEY", env("S3_SECRET_ACCESS_KEY", cfg.Storage.SecretKey))
	cfg.Storage.Bucket = env("S3_BUCKET", cfg.Storage.Bucket)
	// A bucket or region without an endpoint means AWS S3.
	if cfg.Storage.Endpoint == defaultStorageEndpoint && (env("S3_REGION", "") != "" || env("S3_BUCKET", "") != "") {
		cfg.Storage.Endpoint = awsS3Endpoint
		cfg.Storage.UseSSL = true
	}
	cfg.Storage.UseSSL = envBool("S3_USE_SSL", cfg.Storage.UseSSL)
	cfg.Storage.KeyPrefix = env("S3_KEY_PREFIX", cfg.Storage.KeyPrefix)
	cfg.Storage.PublicBaseURL = env("S3_PUBLIC_BASE_URL", cfg.Storage.PublicBaseURL)

	cfg.Queue.RedisAddr = env("REDIS_ADDR", cfg.Queue.RedisAddr)
	cfg.Queue.RedisPassword = env("REDIS_PASSWORD", cfg.Queue.RedisPassword)
	cfg.Queue.RedisDB = envInt("REDIS_DB", cfg.Queue.RedisDB)
	cfg.Queue.Name = env("ASYNC_QUEUE", cfg.Queue.Name)

	cfg.Worker.Concurrency = envInt("WORKER_CONCURRENCY", cfg.Worker.Concurrency)
	cfg.Worker.MetricsAddr = env("WORKER_METRICS_ADDR", cfg.Worker.MetricsAddr)

	cfg.Notify.WebhookURL = env("NOTIFY_WEBHOOK_URL", cfg.Notify.WebhookURL)
	cfg.Notify.SigningSecret = env("NOTIFY_SIGNING_SECRET", cfg.Notify.SigningSecret)
	cfg.Notify.MaxAttempts = envInt("NOTIFY_MAX_ATTEMPTS", cfg.Notify.MaxAttempts)

	cfg.Database.DSN = env("POSTGRES_DSN", cfg.Database.DSN)

	cfg.Telemetry.Exporter = env("OTEL_TRACES_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.OTLPEndpoint = env("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
	cfg.Telemetry.OTLPInsecure = envBool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Telemetry.OTLPInsecure)
	cfg.Telemetry.SampleRatio = envFloat("OTEL_TRACES_SAMPLER_ARG", cfg.Telemetry.SampleRatio)

	cfg.Log.Level = env("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env("LOG_FORMAT", cfg.Log.Format)
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
