package config

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	defaultServiceName  = "growth-labs"
	defaultServicePort  = 8094
	defaultVersion      = "0.1.0"
	defaultBufferSize   = 1000
	defaultFlushThresh  = 500
	defaultLoggingLevel = "info"
	defaultLoggingFmt   = "json"
	defaultDBHost       = "localhost"
	defaultDBPort       = 5432
	defaultDBName       = "growth_labs"
	defaultDBUser       = "postgres"
	defaultDBSSLMode    = "disable"

	defaultMaxEventsPerMinute = 120
	defaultWindowSeconds      = 60

	defaultMaxBatchSize   = 50
	defaultFlushIntervalS = 1
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name           string        `yaml:"name"`
	Version        string        `yaml:"version"`
	Port           int           `env:"GROWTH_LABS_PORT"        yaml:"port"`
	Debug          bool          `env:"APP_DEBUG"               yaml:"debug"`
	AdminToken     string        `env:"GROWTH_LABS_ADMIN_TOKEN" yaml:"admin_token"`
	CORSOrigins    []string      `env:"GROWTH_LABS_CORS"        yaml:"cors_origins"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	BufferSize     int           `yaml:"buffer_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	FlushThreshold int           `yaml:"flush_threshold"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_GROWTH_LABS_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_GROWTH_LABS_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_GROWTH_LABS_USER"     yaml:"user"`
	Password string `env:"POSTGRES_GROWTH_LABS_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_GROWTH_LABS_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_GROWTH_LABS_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// MigrateURL returns the postgres:// URL used by golang-migrate.
func (d *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// RateLimitConfig holds per-IP rate limiting for the ingestion endpoints.
type RateLimitConfig struct {
	MaxEventsPerMinute int `yaml:"max_events_per_minute"`
	WindowSeconds      int `yaml:"window_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  yaml:"level"`
	Format string `env:"LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return load(path)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRateLimitDefaults(&cfg.RateLimit)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.MaxBatchSize == 0 {
		svc.MaxBatchSize = defaultMaxBatchSize
	}
	if svc.BufferSize == 0 {
		svc.BufferSize = defaultBufferSize
	}
	if svc.FlushInterval == 0 {
		svc.FlushInterval = defaultFlushIntervalS * time.Second
	}
	if svc.FlushThreshold == 0 {
		svc.FlushThreshold = defaultFlushThresh
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxEventsPerMinute == 0 {
		rl.MaxEventsPerMinute = defaultMaxEventsPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return &ValidationError{
			Field:   "service.port",
			Message: "must be between 1 and 65535",
		}
	}
	if c.Service.AdminToken == "" {
		return &ValidationError{
			Field:   "service.admin_token",
			Message: "is required",
		}
	}
	return nil
}
