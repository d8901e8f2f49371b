package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultAppBaseURL      = "http://localhost:8080"
	defaultDatabaseURL     = "ecos.db"
	defaultJWTSecret       = "change-me-jwt-secret"
	defaultJWTTTL          = "1h"
	defaultJWTIssuer       = "ecos"
	defaultMaxUploadBytes  = 10*1024*1024 + 1024
	defaultStorageDriver   = "local"
	defaultLocalDir        = "./uploads"
	defaultApprovalPoints  = 10
	defaultShutdownTimeout = "10s"
)

type Config struct {
	AppEnv          string
	HTTPAddr        string
	AppBaseURL      string
	ShutdownTimeout time.Duration
	DatabaseURL     string
	AutoMigrate     bool

	JWTSecret string
	JWTTTL    time.Duration
	JWTIssuer string

	MaxUploadBytes int64
	ApprovalPoints int

	Storage StorageConfig
	Buckets Buckets

	CORSAllowedOrigins []string
}

type StorageConfig struct {
	Driver        string
	LocalDir      string
	PublicBaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	GCSCredentialsFile string
	GCSEmulatorHost    string
}

// Buckets names the bucket per entity family.
type Buckets struct {
	ReceptionPoint string
	User           string
	Waste          string
}

// Load reads the environment, after loading .env when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.AppBaseURL = strings.TrimRight(strings.TrimSpace(getEnv("APP_BASE_URL", defaultAppBaseURL)), "/")
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.AutoMigrate = parseBoolEnv("AUTO_MIGRATE", "true")
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.JWTIssuer = strings.TrimSpace(getEnv("JWT_ISSUER", defaultJWTIssuer))

	var err error
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", defaultJWTTTL); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDurationEnv("SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.MaxUploadBytes, err = parseIntEnv("MAX_UPLOAD_BYTES", defaultMaxUploadBytes); err != nil {
		return nil, err
	}
	points, err := parseIntEnv("APPROVAL_POINTS", defaultApprovalPoints)
	if err != nil {
		return nil, err
	}
	cfg.ApprovalPoints = int(points)

	cfg.Storage = StorageConfig{
		Driver:             strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", defaultStorageDriver))),
		LocalDir:           strings.TrimSpace(getEnv("STORAGE_LOCAL_DIR", defaultLocalDir)),
		PublicBaseURL:      strings.TrimSpace(os.Getenv("STORAGE_PUBLIC_BASE_URL")),
		S3Endpoint:         strings.TrimSpace(getEnv("S3_ENDPOINT", "localhost:9000")),
		S3AccessKey:        strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
		S3SecretKey:        strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
		S3Region:           strings.TrimSpace(os.Getenv("S3_REGION")),
		S3UseSSL:           parseBoolEnv("S3_USE_SSL", "false"),
		GCSCredentialsFile: strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_FILE")),
		GCSEmulatorHost:    strings.TrimSpace(os.Getenv("GCS_EMULATOR_HOST")),
	}
	cfg.Buckets = Buckets{
		ReceptionPoint: strings.TrimSpace(getEnv("BUCKET_RECEPTION_POINT", "reception-point")),
		User:           strings.TrimSpace(getEnv("BUCKET_USER", "user")),
		Waste:          strings.TrimSpace(getEnv("BUCKET_WASTE", "waste")),
	}

	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.ApprovalPoints < 0 {
		return fmt.Errorf("APPROVAL_POINTS must be >= 0")
	}
	if cfg.AppBaseURL == "" {
		return fmt.Errorf("APP_BASE_URL must not be empty")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	switch cfg.Storage.Driver {
	case "local", "memory", "gcs":
	case "s3":
		if cfg.Storage.S3AccessKey == "" || cfg.Storage.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of: local, memory, gcs, s3")
	}
	if cfg.Buckets.ReceptionPoint == "" || cfg.Buckets.User == "" || cfg.Buckets.Waste == "" {
		return fmt.Errorf("bucket names must not be empty")
	}

	if IsProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.Storage.Driver == "memory" {
			return fmt.Errorf("in prod/release STORAGE_DRIVER must not be memory")
		}
	}
	return nil
}

func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
