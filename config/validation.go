package config

import "fmt"

// ValidateConfiguration checks a loaded Config for values that would
// fail at runtime instead of at startup.
func ValidateConfiguration(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Storage != nil {
		if cfg.Storage.Host == "" {
			return fmt.Errorf("storage.host is required")
		}
		if cfg.Storage.Port <= 0 || cfg.Storage.Port > 65535 {
			return fmt.Errorf("storage.port must be between 1 and 65535, got %d", cfg.Storage.Port)
		}
		if cfg.Storage.Database == "" {
			return fmt.Errorf("storage.database is required")
		}
	}

	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", cfg.Logging.Level)
		}
	}

	return nil
}
