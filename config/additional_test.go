package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_EdgeCases(t *testing.T) {
	t.Run("non-existent file", func(t *testing.T) {
		_, err := LoadFromFile("/non/existent/file.yaml")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid YAML and JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "invalid.yaml")

		invalidContent := `
environment: "development"
storage: [unclosed array
`
		require.NoError(t, os.WriteFile(configPath, []byte(invalidContent), 0644))

		_, err := LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config")
	})
}

func TestSaveToFile_UnknownExtensionDefaultsToYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.conf")

	cfg := &Config{Environment: "development"}
	require.NoError(t, SaveToFile(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "environment: development")
}

func TestSubstituteEnvVarsInConfig_NilConfig(t *testing.T) {
	// Should not panic on a nil config.
	SubstituteEnvVarsInConfig(nil)
}

func TestSubstituteEnvVarsInConfig_LoggingAndMetrics(t *testing.T) {
	os.Setenv("TEST_LOG_LEVEL", "warn")
	os.Setenv("TEST_METRICS_ADDR", ":9999")
	defer os.Unsetenv("TEST_LOG_LEVEL")
	defer os.Unsetenv("TEST_METRICS_ADDR")

	cfg := &Config{
		Logging: &LoggingConfig{Level: "${TEST_LOG_LEVEL}"},
		Metrics: &MetricsConfig{Addr: "${TEST_METRICS_ADDR}"},
	}

	SubstituteEnvVarsInConfig(cfg)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestValidateConfiguration_NilConfig(t *testing.T) {
	err := ValidateConfiguration(nil)
	assert.Error(t, err)
}

func TestValidateConfiguration_NilSectionsAreSkipped(t *testing.T) {
	// A config with no Storage/Logging sections at all is valid; only
	// populated sections are checked.
	err := ValidateConfiguration(&Config{Environment: "development"})
	assert.NoError(t, err)
}
