package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Security  SecurityConfig
	Admin     AdminConfig
	License   LicenseConfig
	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	Jobs      JobsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// SecurityConfig holds security encryption keys
type SecurityConfig struct {
	SessionEncryptionKey string
}

// AdminConfig describes the account created at first startup
type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

// LicenseConfig holds key generation settings
type LicenseConfig struct {
	DefaultTemplate  string
	GenerateMax      int
	CollisionRetries int
}

// WebhookConfig holds notification dispatcher settings
type WebhookConfig struct {
	Workers    int
	QueueSize  int
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

// RateLimitConfig bounds public license checks per client IP
type RateLimitConfig struct {
	CheckRequests int
	CheckWindow   time.Duration
}

// JobsConfig holds background job intervals
type JobsConfig struct {
	StatsInterval time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			Env:            getEnv("SERVER_ENV", "development"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			DBName:       getEnv("DB_NAME", "keyforge"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Security: SecurityConfig{
			SessionEncryptionKey: getEnv("SESSION_ENCRYPTION_KEY", "0000000000000000000000000000000000000000000000000000000000000000"), // 32-bytes hex string
		},
		Admin: AdminConfig{
			Email:    getEnv("ADMIN_EMAIL", "admin@keyforge.local"),
			Password: getEnv("ADMIN_PASSWORD", ""),
			Name:     getEnv("ADMIN_NAME", "Administrator"),
		},
		License: LicenseConfig{
			DefaultTemplate:  getEnv("LICENSE_DEFAULT_TEMPLATE", "****-****-****-****"),
			GenerateMax:      getEnvAsInt("LICENSE_GENERATE_MAX", 100),
			CollisionRetries: getEnvAsInt("LICENSE_COLLISION_RETRIES", 10),
		},
		Webhook: WebhookConfig{
			Workers:    getEnvAsInt("WEBHOOK_WORKERS", 4),
			QueueSize:  getEnvAsInt("WEBHOOK_QUEUE_SIZE", 256),
			Timeout:    getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
			RatePerSec: getEnvAsFloat("WEBHOOK_RATE_PER_SEC", 20),
			Burst:      getEnvAsInt("WEBHOOK_BURST", 10),
		},
		RateLimit: RateLimitConfig{
			CheckRequests: getEnvAsInt("RATE_LIMIT_CHECK_REQUESTS", 60),
			CheckWindow:   getEnvAsDuration("RATE_LIMIT_CHECK_WINDOW", time.Minute),
		},
		Jobs: JobsConfig{
			StatsInterval: getEnvAsDuration("JOBS_STATS_INTERVAL", time.Minute),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
