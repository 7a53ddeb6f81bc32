package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wardenhq/warden/pkg/kv"
	"github.com/wardenhq/warden/pkg/observability"
	"github.com/wardenhq/warden/pkg/ratelimit"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage kv.Config

	// Observability configuration
	Observability ObservabilityConfig

	// RateLimit configuration
	RateLimit RateLimitConfig

	// Bootstrap configuration
	Bootstrap BootstrapConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// RateLimitConfig holds per-tier rate limiter settings
type RateLimitConfig struct {
	Enabled   bool
	KeyPrefix string

	Read  ratelimit.Config
	Check ratelimit.Config
	Write ratelimit.Config
	Admin ratelimit.Config
}

// BootstrapConfig holds startup seeding settings
type BootstrapConfig struct {
	// AdminEmails lists operators granted super-admin at startup.
	AdminEmails []string

	// AdminDirectory maps admin emails to customer ids as
	// "email=customer_id" pairs, for deployments without an identity
	// provider integration.
	AdminDirectory []string

	// CatalogCacheTTL bounds how long a cached role definition may lag a
	// save made by another instance.
	CatalogCacheTTL time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
		RateLimit:     loadRateLimitConfig(),
		Bootstrap:     loadBootstrapConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("WARDEN_HOST", "0.0.0.0"),
		Port:            getEnv("WARDEN_PORT", "8080"),
		ReadTimeout:     getEnvDuration("WARDEN_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WARDEN_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("WARDEN_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("WARDEN_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("WARDEN_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads key-value store configuration from environment
func loadStorageConfig() kv.Config {
	cfg := kv.DefaultConfig()

	if redisURL := getEnv("WARDEN_REDIS_URL", ""); redisURL != "" {
		cfg.URL = redisURL
	}
	if redisPassword := getEnv("WARDEN_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.Password = redisPassword
	}
	if redisDB := getEnvInt("WARDEN_REDIS_DB", -1); redisDB >= 0 {
		cfg.DB = redisDB
	}
	if maxRetries := getEnvInt("WARDEN_REDIS_MAX_RETRIES", 0); maxRetries > 0 {
		cfg.MaxRetries = maxRetries
	}
	if poolSize := getEnvInt("WARDEN_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.PoolSize = poolSize
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("WARDEN_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("WARDEN_METRICS_ENABLED", true),
	}
}

// loadRateLimitConfig loads rate limiter configuration from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:   getEnvBool("WARDEN_RATELIMIT_ENABLED", true),
		KeyPrefix: getEnv("WARDEN_RATELIMIT_KEY_PREFIX", ""),
		Read:      loadTierConfig("READ", ratelimit.ReadTierConfig()),
		Check:     loadTierConfig("CHECK", ratelimit.CheckTierConfig()),
		Write:     loadTierConfig("WRITE", ratelimit.WriteTierConfig()),
		Admin:     loadTierConfig("ADMIN", ratelimit.AdminTierConfig()),
	}
}

// loadTierConfig applies env overrides on top of a tier's defaults
func loadTierConfig(tier string, defaults ratelimit.Config) ratelimit.Config {
	cfg := defaults
	if max := getEnvInt("WARDEN_RATELIMIT_"+tier+"_MAX", 0); max > 0 {
		cfg.MaxRequests = max
	}
	if window := getEnvDuration("WARDEN_RATELIMIT_"+tier+"_WINDOW", 0); window > 0 {
		cfg.Window = window
	}
	return cfg
}

// loadBootstrapConfig loads bootstrap configuration from environment
func loadBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{
		AdminEmails:     getEnvList("WARDEN_ADMIN_EMAILS"),
		AdminDirectory:  getEnvList("WARDEN_ADMIN_DIRECTORY"),
		CatalogCacheTTL: getEnvDuration("WARDEN_CATALOG_CACHE_TTL", time.Minute),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.URL == "" {
		return fmt.Errorf("redis URL is required")
	}

	for tier, rl := range map[string]ratelimit.Config{
		"read": c.RateLimit.Read, "check": c.RateLimit.Check,
		"write": c.RateLimit.Write, "admin": c.RateLimit.Admin,
	} {
		if rl.MaxRequests <= 0 {
			return fmt.Errorf("%s tier max requests must be positive", tier)
		}
		if rl.Window <= 0 {
			return fmt.Errorf("%s tier window must be positive", tier)
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable as a slice
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
