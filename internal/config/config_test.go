package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil")
	}

	if cfg.Port != 8180 {
		t.Errorf("Expected default port 8180, got %d", cfg.Port)
	}
	if cfg.DatabaseDriver != "sqlite" {
		t.Errorf("Expected default database driver 'sqlite', got %s", cfg.DatabaseDriver)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("Expected default log format 'json', got %s", cfg.LogFormat)
	}
	if cfg.AuthMode != "disabled" {
		t.Errorf("Expected default auth mode 'disabled', got %s", cfg.AuthMode)
	}
	if cfg.DispatcherWorkers != 8 {
		t.Errorf("Expected default dispatcher_workers 8, got %d", cfg.DispatcherWorkers)
	}
	if cfg.LockStealMultiplier != 2.0 {
		t.Errorf("Expected default lock_steal_multiplier 2.0, got %v", cfg.LockStealMultiplier)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Setenv("ORCHESTRATOR_PORT", "9000")
	os.Setenv("ORCHESTRATOR_DATABASE_DSN", "/tmp/test.db")
	os.Setenv("ORCHESTRATOR_LOG_LEVEL", "debug")
	os.Setenv("ORCHESTRATOR_AUTH_MODE", "required")
	os.Setenv("ORCHESTRATOR_AUTH_JWT_SECRET", "test-secret-key-minimum-32-characters-long")
	defer func() {
		os.Unsetenv("ORCHESTRATOR_PORT")
		os.Unsetenv("ORCHESTRATOR_DATABASE_DSN")
		os.Unsetenv("ORCHESTRATOR_LOG_LEVEL")
		os.Unsetenv("ORCHESTRATOR_AUTH_MODE")
		os.Unsetenv("ORCHESTRATOR_AUTH_JWT_SECRET")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000 from env, got %d", cfg.Port)
	}
	if cfg.DatabaseDSN != "/tmp/test.db" {
		t.Errorf("Expected database dsn '/tmp/test.db' from env, got %s", cfg.DatabaseDSN)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug' from env, got %s", cfg.LogLevel)
	}
	if cfg.AuthMode != "required" {
		t.Errorf("Expected auth mode 'required' from env, got %s", cfg.AuthMode)
	}
}

func TestLoad_RequiresJWTSecretWhenAuthEnabled(t *testing.T) {
	os.Clearenv()
	os.Setenv("ORCHESTRATOR_AUTH_MODE", "required")
	defer os.Unsetenv("ORCHESTRATOR_AUTH_MODE")

	if _, err := Load(); err == nil {
		t.Error("expected error when auth_mode=required without auth_jwt_secret")
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load should not error when config file is missing: %v", err)
	}
	if cfg == nil {
		t.Fatal("Config should not be nil even without config file")
	}
}
