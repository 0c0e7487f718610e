package bootstrap

import (
	"fmt"

	infraconfig "github.com/trailverse/analytics/infrastructure/config"
	"github.com/trailverse/analytics/infrastructure/logger"
	"github.com/trailverse/analytics/internal/config"
)

// LoadConfig loads and validates the service configuration.
func LoadConfig() (*config.Config, error) {
	configPath := infraconfig.GetConfigPath("config.yml")

	cfg, loadErr := config.Load(configPath)
	if loadErr != nil {
		return nil, fmt.Errorf("load config: %w", loadErr)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}

	return cfg, nil
}

// CreateLogger creates a structured logger for the service.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Development = logCfg.Development || cfg.Service.Debug

	log, logErr := logger.New(logCfg)
	if logErr != nil {
		return nil, fmt.Errorf("create logger: %w", logErr)
	}

	return log.With(logger.String("service", cfg.Service.Name)), nil
}
