package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `environment: staging
storage:
  host: db.internal
  port: 5432
  user: vault
  database: vault_blobs
logging:
  level: debug
  format: json
`

	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "db.internal", cfg.Storage.Host)
	assert.Equal(t, 5432, cfg.Storage.Port)
	assert.Equal(t, "disable", cfg.Storage.SSLMode, "default should be applied")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_DB_HOST", "prod-db.example.com")
	defer os.Unsetenv("TEST_DB_HOST")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config-env.yaml")

	configContent := `environment: production
storage:
  host: "${TEST_DB_HOST}"
  database: vault
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)

	SubstituteEnvVarsInConfig(cfg)
	assert.Equal(t, "prod-db.example.com", cfg.Storage.Host)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	yamlPath := filepath.Join(tmpDir, "roundtrip.yaml")
	jsonPath := filepath.Join(tmpDir, "roundtrip.json")

	cfg := &Config{
		Environment: "development",
		Storage: &StorageConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "vault",
			SSLMode:  "disable",
		},
		Logging: &LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}

	require.NoError(t, SaveToFile(cfg, yamlPath))
	require.NoError(t, SaveToFile(cfg, jsonPath))

	loadedYAML, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Host, loadedYAML.Storage.Host)

	loadedJSON, err := LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Storage.Database, loadedJSON.Storage.Database)
}

func TestToPostgresConfig(t *testing.T) {
	sc := &StorageConfig{
		Host:     "db",
		Port:     5433,
		User:     "vault",
		Password: "secret",
		Database: "vault_blobs",
		SSLMode:  "require",
	}

	pc := sc.ToPostgresConfig()
	assert.Equal(t, sc.Host, pc.Host)
	assert.Equal(t, sc.Port, pc.Port)
	assert.Equal(t, sc.User, pc.User)
	assert.Equal(t, sc.Password, pc.Password)
	assert.Equal(t, sc.Database, pc.Database)
	assert.Equal(t, sc.SSLMode, pc.SSLMode)
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				Storage: &StorageConfig{Host: "localhost", Port: 5432, Database: "vault"},
				Logging: &LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "missing storage host",
			cfg: &Config{
				Storage: &StorageConfig{Port: 5432, Database: "vault"},
			},
			wantErr: true,
		},
		{
			name: "invalid storage port",
			cfg: &Config{
				Storage: &StorageConfig{Host: "localhost", Port: 70000, Database: "vault"},
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			cfg: &Config{
				Logging: &LoggingConfig{Level: "verbose"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfiguration(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
