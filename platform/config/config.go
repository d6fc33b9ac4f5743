// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity modes select the permission registry and the authenticator together.
const (
	IdentityModeFull = "full"
	IdentityModeDemo = "demo"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// SessionConfig provides settings for the session manager.
type SessionConfig interface {
	JWTConfig
	GetSessionTTL() time.Duration
}

// IdentityConfig selects between the full identity store and the demo login.
type IdentityConfig interface {
	GetIdentityMode() string
	IsDemoIdentity() bool
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// RedisConfig provides the shared Redis connection used for sessions and caching.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq worker and periodic scheduler.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetDeadlineScanCron() string
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketClaimDocuments() string
	IsMinIOEnabled() bool
}

// DashboardConfig provides settings for the dashboard summary cache.
type DashboardConfig interface {
	GetDashboardCacheTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                       string
	HTTPAddr                  string
	DatabaseURL               string
	JWTAccessSecret           string
	SessionTTL                time.Duration
	IdentityMode              string
	CORSAllowAll              bool
	CORSOrigins               []string
	CORSAllowCreds            bool
	RedisURL                  string
	RedisTLSInsecure          bool
	AsynqQueueName            string
	AsynqConcurrency          int
	DeadlineScanCron          string
	MinIOEndpoint             string
	MinIOAccessKey            string
	MinIOSecretKey            string
	MinIOUseSSL               bool
	MinIOMaxFileSize          int64
	MinioBucketClaimDocuments string
	DashboardCacheTTL         time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// SessionConfig implementation
func (c *Config) GetSessionTTL() time.Duration { return c.SessionTTL }

// IdentityConfig implementation
func (c *Config) GetIdentityMode() string { return c.IdentityMode }
func (c *Config) IsDemoIdentity() bool     { return c.IdentityMode == IdentityModeDemo }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// RedisConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }

// SchedulerConfig implementation
func (c *Config) GetAsynqQueueName() string   { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int    { return c.AsynqConcurrency }
func (c *Config) GetDeadlineScanCron() string { return c.DeadlineScanCron }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketClaimDocuments() string {
	return c.MinioBucketClaimDocuments
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// DashboardConfig implementation
func (c *Config) GetDashboardCacheTTL() time.Duration { return c.DashboardCacheTTL }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                       getEnv("APP_ENV", "development"),
		HTTPAddr:                  getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:               getEnv("DATABASE_URL", ""),
		JWTAccessSecret:           getEnv("JWT_ACCESS_SECRET", ""),
		SessionTTL:                mustDuration(getEnv("SESSION_TTL", "12h")),
		IdentityMode:              strings.ToLower(strings.TrimSpace(getEnv("IDENTITY_MODE", IdentityModeFull))),
		CORSAllowAll:              corsAllowAll,
		CORSOrigins:               corsOrigins,
		CORSAllowCreds:            strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		RedisTLSInsecure:          strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:            getEnv("ASYNQ_QUEUE", "claims"),
		AsynqConcurrency:          mustInt(getEnv("ASYNQ_CONCURRENCY", "5")),
		DeadlineScanCron:          getEnv("DEADLINE_SCAN_CRON", "@every 1h"),
		MinIOEndpoint:             getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:            getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:            getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:               strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:          mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "26214400")),
		MinioBucketClaimDocuments: getEnv("MINIO_BUCKET_CLAIM_DOCUMENTS", "claim-documents"),
		DashboardCacheTTL:         mustDuration(getEnv("DASHBOARD_CACHE_TTL", "2m")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be a positive duration")
	}
	if c.IdentityMode != IdentityModeFull && c.IdentityMode != IdentityModeDemo {
		return fmt.Errorf("IDENTITY_MODE must be %q or %q", IdentityModeFull, IdentityModeDemo)
	}
	if c.IdentityMode == IdentityModeDemo && strings.EqualFold(c.Env, "production") {
		return fmt.Errorf("IDENTITY_MODE=demo is not allowed when APP_ENV is production")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
