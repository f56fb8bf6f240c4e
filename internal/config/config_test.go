package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg, err := Load()

	// Assert
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.ServerPort != DefaultServerPort {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, DefaultServerPort)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %s, want %s", cfg.LogLevel, DefaultLogLevel)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.MetricsEnabled != DefaultMetricsEnabled {
		t.Errorf("MetricsEnabled = %v, want %v", cfg.MetricsEnabled, DefaultMetricsEnabled)
	}
	if cfg.AuthMode != DefaultAuthMode {
		t.Errorf("AuthMode = %s, want %s", cfg.AuthMode, DefaultAuthMode)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %s, want %s", cfg.Store, StoreMemory)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name:    "custom server port",
			envVars: map[string]string{EnvServerPort: "9090"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.ServerPort != 9090 || cfg.Address() != ":9090" {
					t.Errorf("ServerPort = %d, Address = %s", cfg.ServerPort, cfg.Address())
				}
			},
		},
		{
			name:    "custom log level and timeout",
			envVars: map[string]string{EnvLogLevel: "debug", EnvShutdownTimeout: "5s"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "debug" || cfg.ShutdownTimeout != 5*time.Second {
					t.Errorf("LogLevel = %s, ShutdownTimeout = %v", cfg.LogLevel, cfg.ShutdownTimeout)
				}
			},
		},
		{
			name:    "metrics disabled",
			envVars: map[string]string{EnvMetricsEnabled: "false"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.MetricsEnabled {
					t.Error("MetricsEnabled = true, want false")
				}
			},
		},
		{
			name:    "sqlite store",
			envVars: map[string]string{EnvStore: "SQLite", EnvSQLitePath: "/var/lib/tasklist.db"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Store != StoreSQLite || cfg.SQLitePath != "/var/lib/tasklist.db" {
					t.Errorf("Store = %s, SQLitePath = %s", cfg.Store, cfg.SQLitePath)
				}
			},
		},
		{
			name:    "api key auth",
			envVars: map[string]string{EnvAuthMode: "apikey", EnvAPIKeys: "k1:alice"},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.AuthMode != "apikey" || cfg.APIKeys != "k1:alice" {
					t.Errorf("AuthMode = %s, APIKeys = %s", cfg.AuthMode, cfg.APIKeys)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			clearEnvVars(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			// Act
			cfg, err := Load()

			// Assert
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{name: "port zero", envVars: map[string]string{EnvServerPort: "0"}, wantErr: ErrInvalidServerPort},
		{name: "port too high", envVars: map[string]string{EnvServerPort: "65536"}, wantErr: ErrInvalidServerPort},
		{name: "log level", envVars: map[string]string{EnvLogLevel: "verbose"}, wantErr: ErrInvalidLogLevel},
		{name: "zero timeout", envVars: map[string]string{EnvShutdownTimeout: "0s"}, wantErr: ErrInvalidShutdownTimeout},
		{name: "unknown auth mode", envVars: map[string]string{EnvAuthMode: "oidc"}, wantErr: ErrInvalidAuthMode},
		{name: "basic without users", envVars: map[string]string{EnvAuthMode: "basic"}, wantErr: ErrInvalidBasicAuthConfig},
		{name: "apikey without keys", envVars: map[string]string{EnvAuthMode: "apikey"}, wantErr: ErrInvalidAPIKeyConfig},
		{name: "multi without config", envVars: map[string]string{EnvAuthMode: "multi"}, wantErr: ErrInvalidMultiAuthConfig},
		{name: "unknown store", envVars: map[string]string{EnvStore: "postgres"}, wantErr: ErrInvalidStore},
		{name: "port not a number", envVars: map[string]string{EnvServerPort: "abc"}},
		{name: "bad duration", envVars: map[string]string{EnvShutdownTimeout: "soon"}},
		{name: "bad bool", envVars: map[string]string{EnvMetricsEnabled: "notabool"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			clearEnvVars(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			// Act
			cfg, err := Load()

			// Assert
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if cfg != nil {
				t.Errorf("Load() expected nil config on error, got %+v", cfg)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Store(t *testing.T) {
	valid := Config{
		ServerPort:      8080,
		LogLevel:        "info",
		ShutdownTimeout: time.Second,
		Store:           StoreSQLite,
		SQLitePath:      "  ",
	}

	if err := valid.Validate(); !errors.Is(err, ErrInvalidSQLitePath) {
		t.Errorf("Validate() error = %v, want %v", err, ErrInvalidSQLitePath)
	}

	valid.SQLitePath = "tasks.db"
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	// Arrange
	clearEnvVars(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "APP_SERVER_PORT=9191\nAPP_STORE=sqlite\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(EnvStore, "memory")

	// Act
	err := LoadDotEnv(path)
	cfg, loadErr := Load()

	// Assert
	if err != nil || loadErr != nil {
		t.Fatalf("LoadDotEnv() = %v, Load() = %v", err, loadErr)
	}
	if cfg.ServerPort != 9191 {
		t.Errorf("ServerPort = %d, want 9191 from .env", cfg.ServerPort)
	}
	if cfg.Store != StoreMemory {
		t.Errorf("Store = %s, want environment to win over .env", cfg.Store)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("LoadDotEnv() unexpected error: %v", err)
	}
}

// clearEnvVars unsets every variable this package reads for the duration
// of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		EnvServerPort,
		EnvLogLevel,
		EnvShutdownTimeout,
		EnvMetricsEnabled,
		EnvAuthMode,
		EnvBasicAuthUsers,
		EnvAPIKeys,
		EnvStore,
		EnvSQLitePath,
		EnvClientServerURL,
		EnvClientListID,
		EnvClientAPIKey,
		EnvClientUsername,
		EnvClientPassword,
		EnvClientTimeout,
		EnvClientLogLevel,
	}
	for _, env := range envVars {
		t.Setenv(env, "")
		if err := os.Unsetenv(env); err != nil {
			t.Fatalf("failed to unset env var %s: %v", env, err)
		}
	}
}
