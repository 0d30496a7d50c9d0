// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.


package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config)
	ConfigDir string
	// Environment overrides automatic environment detection
	Environment string
	// EnvFile is a dotenv file to load before reading environment
	// variables. Loading is best-effort: a missing file is not an error.
	EnvFile string
	// SkipEnvSubstitution disables environment variable substitution
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation
	SkipValidation bool
}

// DefaultLoaderOptions returns default loader options
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:           "config",
		Environment:         "",
		EnvFile:             ".env",
		SkipEnvSubstitution: false,
		SkipValidation:      false,
	}
}

// Load loads configuration with automatic environment detection
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.EnvFile != "" {
		// A missing .env file is the common case outside of local
		// development; only a malformed one is worth surfacing.
		if err := godotenv.Load(options.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file %s: %w", options.EnvFile, err)
		}
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	envConfigPath := filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env))
	cfg, err := loadConfigFile(envConfigPath)
	if err != nil {
		defaultConfigPath := filepath.Join(options.ConfigDir, "default.yaml")
		cfg, err = loadConfigFile(defaultConfigPath)
		if err != nil {
			configPath := filepath.Join(options.ConfigDir, "config.yaml")
			cfg, err = loadConfigFile(configPath)
			if err != nil {
				cfg = &Config{}
				setDefaults(cfg)
			}
		}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		if err := ValidateConfiguration(cfg); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadConfigFile loads a single config file
func loadConfigFile(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return LoadFromFile(path)
}

// applyEnvironmentOverrides overrides config with environment variables
func applyEnvironmentOverrides(cfg *Config) {
	if cfg.Storage == nil {
		cfg.Storage = &StorageConfig{}
	}
	if host := os.Getenv("VAULT_STORAGE_HOST"); host != "" {
		cfg.Storage.Host = host
	}
	if port := os.Getenv("VAULT_STORAGE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Storage.Port = p
		}
	}
	if user := os.Getenv("VAULT_STORAGE_USER"); user != "" {
		cfg.Storage.User = user
	}
	if pass := os.Getenv("VAULT_STORAGE_PASSWORD"); pass != "" {
		cfg.Storage.Password = pass
	}
	if db := os.Getenv("VAULT_STORAGE_DATABASE"); db != "" {
		cfg.Storage.Database = db
	}
	if sslMode := os.Getenv("VAULT_STORAGE_SSLMODE"); sslMode != "" {
		cfg.Storage.SSLMode = sslMode
	}

	if cfg.Logging == nil {
		cfg.Logging = &LoggingConfig{}
	}
	if logLevel := os.Getenv("VAULT_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("VAULT_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if os.Getenv("VAULT_METRICS_ENABLED") == "true" {
		cfg.Metrics.Enabled = true
	}
	if os.Getenv("VAULT_METRICS_ENABLED") == "false" {
		cfg.Metrics.Enabled = false
	}
	if addr := os.Getenv("VAULT_METRICS_ADDR"); addr != "" {
		cfg.Metrics.Addr = addr
	}

	setDefaults(cfg)
}

// LoadForEnvironment loads configuration for a specific environment
func LoadForEnvironment(environment string) (*Config, error) {
	opts := DefaultLoaderOptions()
	opts.Environment = environment
	return Load(opts)
}

// MustLoad loads configuration or panics on error
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
