package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	StorageDriverS3    = "s3"
	StorageDriverLocal = "local"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Mongo       MongoConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	RateLimit   RateLimitConfig
	Storage     StorageConfig
	Mail        MailConfig
	Replication ReplicationConfig
	Archive     ArchiveConfig
	Analytics   AnalyticsConfig
}

// MongoConfig points at the primary document store holding requests.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// DatabaseConfig describes the PostgreSQL analytics mirror.
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	Timeout      time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RateLimitConfig governs per-identity daily admission.
type RateLimitConfig struct {
	PerDay           int
	SweepProbability float64
	SweepAge         time.Duration
}

// StorageConfig selects the object store for approved artifacts.
type StorageConfig struct {
	Driver          string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	LocalDir        string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	UploadTimeout   time.Duration
	PublicBaseURL   string
}

// MailConfig configures the SMTP transport used for outcome emails.
type MailConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	FromAddress        string
	FromName           string
	InsecureSkipVerify bool
	Workers            int
}

// ReplicationConfig tunes the analytics mirror workers.
type ReplicationConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	JitterPercent int
	Workers       int
	BufferSize    int
	OpTimeout     time.Duration
}

// ArchiveConfig controls the nightly move of stale requests.
type ArchiveConfig struct {
	Enabled   bool
	Retention time.Duration
	Schedule  string
}

// AnalyticsConfig tunes mirror reporting.
type AnalyticsConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Mongo = MongoConfig{
		URI:      v.GetString("MONGO_URI"),
		Database: v.GetString("MONGO_DATABASE"),
		Timeout:  parseDuration(v.GetString("MONGO_TIMEOUT"), 10*time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		Timeout:      parseDuration(v.GetString("DB_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Timeout:  parseDuration(v.GetString("REDIS_TIMEOUT"), 2*time.Second),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.RateLimit = RateLimitConfig{
		PerDay:           v.GetInt("RATE_LIMIT_PER_DAY"),
		SweepProbability: v.GetFloat64("RATE_LIMIT_SWEEP_PROBABILITY"),
		SweepAge:         parseDuration(v.GetString("RATE_LIMIT_SWEEP_AGE"), 48*time.Hour),
	}

	cfg.Storage = StorageConfig{
		Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Bucket:          v.GetString("S3_BUCKET"),
		Region:          v.GetString("S3_REGION"),
		Endpoint:        v.GetString("S3_ENDPOINT"),
		AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
		SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
		LocalDir:        v.GetString("STORAGE_LOCAL_DIR"),
		SignedURLSecret: v.GetString("SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("SIGNED_URL_TTL"), 48*time.Hour),
		UploadTimeout:   parseDuration(v.GetString("STORAGE_UPLOAD_TIMEOUT"), 30*time.Second),
		PublicBaseURL:   strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
	}

	cfg.Mail = MailConfig{
		Host:               v.GetString("SMTP_HOST"),
		Port:               v.GetInt("SMTP_PORT"),
		Username:           v.GetString("SMTP_USER"),
		Password:           v.GetString("SMTP_PASS"),
		FromAddress:        v.GetString("SMTP_FROM"),
		FromName:           v.GetString("SMTP_FROM_NAME"),
		InsecureSkipVerify: v.GetBool("SMTP_INSECURE_SKIP_VERIFY"),
		Workers:            v.GetInt("MAIL_WORKERS"),
	}

	cfg.Replication = ReplicationConfig{
		MaxAttempts:   v.GetInt("REPLICATION_MAX_ATTEMPTS"),
		BaseDelay:     parseDuration(v.GetString("REPLICATION_BASE_DELAY"), 500*time.Millisecond),
		JitterPercent: v.GetInt("REPLICATION_JITTER_PERCENT"),
		Workers:       v.GetInt("REPLICATION_WORKERS"),
		BufferSize:    v.GetInt("REPLICATION_BUFFER_SIZE"),
		OpTimeout:     parseDuration(v.GetString("REPLICATION_OP_TIMEOUT"), 5*time.Second),
	}

	cfg.Archive = ArchiveConfig{
		Enabled:   v.GetBool("ENABLE_ARCHIVE"),
		Retention: parseDuration(v.GetString("ARCHIVE_RETENTION"), 90*24*time.Hour),
		Schedule:  v.GetString("ARCHIVE_SCHEDULE"),
	}

	cfg.Analytics = AnalyticsConfig{
		CacheTTL: parseDuration(v.GetString("ANALYTICS_CACHE_TTL"), time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings that would silently break the pipeline.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RateLimit.PerDay <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_DAY must be positive, got %d", c.RateLimit.PerDay)
	}
	if c.RateLimit.SweepProbability < 0 || c.RateLimit.SweepProbability > 1 {
		return fmt.Errorf("RATE_LIMIT_SWEEP_PROBABILITY must be within [0,1], got %v", c.RateLimit.SweepProbability)
	}
	if c.Replication.MaxAttempts < 1 {
		return fmt.Errorf("REPLICATION_MAX_ATTEMPTS must be at least 1, got %d", c.Replication.MaxAttempts)
	}
	if c.Storage.SignedURLTTL <= 0 {
		return errors.New("SIGNED_URL_TTL must be positive")
	}
	switch c.Storage.Driver {
	case StorageDriverS3:
		if c.Storage.Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	case StorageDriverLocal:
		if c.Storage.SignedURLSecret == "" {
			return errors.New("SIGNED_URL_SECRET is required when STORAGE_DRIVER=local")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "thesisko")
	v.SetDefault("MONGO_TIMEOUT", "10s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docaccess_analytics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TIMEOUT", "2s")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RATE_LIMIT_PER_DAY", 10)
	v.SetDefault("RATE_LIMIT_SWEEP_PROBABILITY", 0.02)
	v.SetDefault("RATE_LIMIT_SWEEP_AGE", "48h")

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "ap-southeast-1")
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY_ID", "")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "")
	v.SetDefault("STORAGE_LOCAL_DIR", "./artifacts")
	v.SetDefault("SIGNED_URL_SECRET", "dev_signed_url_secret")
	v.SetDefault("SIGNED_URL_TTL", "48h")
	v.SetDefault("STORAGE_UPLOAD_TIMEOUT", "30s")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")

	v.SetDefault("SMTP_HOST", "smtp.gmail.com")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "no-reply@thesisko.local")
	v.SetDefault("SMTP_FROM_NAME", "Thesis Archive")
	v.SetDefault("SMTP_INSECURE_SKIP_VERIFY", false)
	v.SetDefault("MAIL_WORKERS", 2)

	v.SetDefault("REPLICATION_MAX_ATTEMPTS", 3)
	v.SetDefault("REPLICATION_BASE_DELAY", "500ms")
	v.SetDefault("REPLICATION_JITTER_PERCENT", 0)
	v.SetDefault("REPLICATION_WORKERS", 2)
	v.SetDefault("REPLICATION_BUFFER_SIZE", 256)
	v.SetDefault("REPLICATION_OP_TIMEOUT", "5s")

	v.SetDefault("ENABLE_ARCHIVE", true)
	v.SetDefault("ARCHIVE_RETENTION", "2160h")
	v.SetDefault("ARCHIVE_SCHEDULE", "0 0 * * *")

	v.SetDefault("ANALYTICS_CACHE_TTL", "1m")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
