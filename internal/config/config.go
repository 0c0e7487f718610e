// Package config loads the analytics service configuration.
package config

import (
	"errors"

	infraconfig "github.com/trailverse/analytics/infrastructure/config"
	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/infrastructure/profiling"
	infraredis "github.com/trailverse/analytics/infrastructure/redis"
	"github.com/trailverse/analytics/internal/ingest"
	"github.com/trailverse/analytics/internal/recorder"
	"github.com/trailverse/analytics/internal/session"
	"github.com/trailverse/analytics/internal/storage"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Default configuration values.
const (
	defaultServiceName = "analytics"
	defaultServicePort = 8095
	defaultVersion     = "0.1.0"
	defaultDBHost      = "localhost"
	defaultDBPort      = 5432
	defaultDBName      = "analytics"
	defaultDBUser      = "postgres"
	defaultDBSSLMode   = "disable"
)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig     `yaml:"service"`
	Database  storage.Config    `yaml:"database"`
	Redis     infraredis.Config `yaml:"redis"`
	Auth      AuthConfig        `yaml:"auth"`
	Recorder  recorder.Config   `yaml:"recorder"`
	Session   session.Config    `yaml:"session"`
	Ingest    ingest.Config     `yaml:"ingest"`
	Storage   StorageConfig     `yaml:"storage"`
	Logging   logger.Config     `yaml:"logging"`
	Profiling profiling.Config  `yaml:"profiling"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `yaml:"version"`
	Port        int      `env:"ANALYTICS_PORT"         yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"              yaml:"debug"`
	CORSOrigins []string `env:"ANALYTICS_CORS_ORIGINS" yaml:"cors_origins"`
}

// AuthConfig holds the shared JWT secret.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"` //nolint:gosec // config field
}

// StorageConfig selects the event store backend.
type StorageConfig struct {
	Driver string `env:"ANALYTICS_STORAGE_DRIVER" yaml:"driver"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverPostgres
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logger.DefaultLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logger.DefaultFormat
	}
	cfg.Recorder.SetDefaults()
	cfg.Session.SetDefaults()
	cfg.Ingest.SetDefaults()
	cfg.Profiling.SetDefaults()
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
}

func setDatabaseDefaults(db *storage.Config) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.DBName == "" {
		db.DBName = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	errs := []error{
		infraconfig.ValidatePort("service.port", c.Service.Port),
		infraconfig.ValidateLogLevel(c.Logging.Level),
		infraconfig.ValidateRequired("auth.jwt_secret", c.Auth.JWTSecret),
		infraconfig.ValidateOneOf("storage.driver", c.Storage.Driver, DriverMemory, DriverPostgres),
		infraconfig.ValidatePositive("recorder.queue_size", c.Recorder.QueueSize),
		infraconfig.ValidatePositive("recorder.workers", c.Recorder.Workers),
		infraconfig.ValidatePositive("ingest.max_batch_size", c.Ingest.MaxBatchSize),
	}
	if c.Storage.Driver == DriverPostgres {
		errs = append(errs,
			infraconfig.ValidateRequired("database.host", c.Database.Host),
			infraconfig.ValidateRequired("database.dbname", c.Database.DBName),
			infraconfig.ValidatePort("database.port", c.Database.Port),
		)
	}
	return errors.Join(errs...)
}

// UsesPostgres reports whether events are stored in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Driver == DriverPostgres
}

// UsesRedisSessions reports whether sessions are kept in Redis rather
// than in process memory.
func (c *Config) UsesRedisSessions() bool {
	return c.Redis.Address != ""
}
