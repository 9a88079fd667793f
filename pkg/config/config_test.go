package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWT:         JWTConfig{Secret: "secret"},
		RateLimit:   RateLimitConfig{PerDay: 10, SweepProbability: 0.02, SweepAge: 48 * time.Hour},
		Replication: ReplicationConfig{MaxAttempts: 3},
		Storage: StorageConfig{
			Driver:          StorageDriverLocal,
			SignedURLSecret: "s",
			SignedURLTTL:    48 * time.Hour,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid local", mutate: func(c *Config) {}},
		{name: "valid s3", mutate: func(c *Config) {
			c.Storage.Driver = StorageDriverS3
			c.Storage.Bucket = "artifacts"
		}},
		{name: "missing jwt secret", mutate: func(c *Config) { c.JWT.Secret = "" }, wantErr: "JWT_SECRET"},
		{name: "zero daily limit", mutate: func(c *Config) { c.RateLimit.PerDay = 0 }, wantErr: "RATE_LIMIT_PER_DAY"},
		{name: "sweep probability above one", mutate: func(c *Config) { c.RateLimit.SweepProbability = 1.5 }, wantErr: "RATE_LIMIT_SWEEP_PROBABILITY"},
		{name: "no attempts", mutate: func(c *Config) { c.Replication.MaxAttempts = 0 }, wantErr: "REPLICATION_MAX_ATTEMPTS"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage.Driver = StorageDriverS3 }, wantErr: "S3_BUCKET"},
		{name: "local without secret", mutate: func(c *Config) { c.Storage.SignedURLSecret = "" }, wantErr: "SIGNED_URL_SECRET"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "gcs" }, wantErr: "unsupported STORAGE_DRIVER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("RATE_LIMIT_PER_DAY", "3")
	t.Setenv("SIGNED_URL_TTL", "1h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.RateLimit.PerDay)
	require.Equal(t, time.Hour, cfg.Storage.SignedURLTTL)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	require.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
}

func TestParseDurationFallsBack(t *testing.T) {
	require.Equal(t, time.Minute, parseDuration("", time.Minute))
	require.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	require.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
