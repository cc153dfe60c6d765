package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is the engine's process configuration, loaded once at startup and
// threaded through component constructors, never read from a global afterward.
type Config struct {
	Port               int      `mapstructure:"port"`
	DatabaseDriver     string   `mapstructure:"database_driver"` // postgres | sqlite
	DatabaseDSN        string   `mapstructure:"database_dsn"`
	LogLevel           string   `mapstructure:"log_level"`  // debug | info | warn | error
	LogFormat          string   `mapstructure:"log_format"` // json | text
	AllowedOrigins     []string `mapstructure:"allowed_origins"`
	RequestTimeoutSec  int      `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`

	// Engine identity and dispatcher tuning.
	EngineID                 string  `mapstructure:"engine_id"` // defaults to a generated UUID if empty
	DispatcherWorkers        int     `mapstructure:"dispatcher_workers"`
	DispatcherPollIntervalMs int     `mapstructure:"dispatcher_poll_interval_ms"`
	DispatcherMaxBackoffMs   int     `mapstructure:"dispatcher_max_backoff_ms"`
	HeartbeatIntervalSec     int     `mapstructure:"heartbeat_interval_sec"`
	LockStealMultiplier      float64 `mapstructure:"lock_steal_multiplier"` // locks older than multiplier*heartbeat may be stolen
	DriverRateLimitPerSec    float64 `mapstructure:"driver_rate_limit_per_sec"`
	DriverRateLimitBurst     int     `mapstructure:"driver_rate_limit_burst"`

	// Reference driver backend. With "kubernetes", an empty kubeconfig path
	// tries in-cluster config, then $HOME/.kube/config; if the driver cannot
	// be built, the engine falls back to the in-process driver.
	DriverBackend  string `mapstructure:"driver_backend"` // kubernetes | memory
	KubeconfigPath string `mapstructure:"kubeconfig_path"`
	KubeNamespace  string `mapstructure:"kube_namespace"`

	// Auth: the trust-context decode boundary; token issuance lives elsewhere.
	AuthMode      string `mapstructure:"auth_mode"` // disabled | optional | required
	AuthJWTSecret string `mapstructure:"auth_jwt_secret"`

	// Webhook token codec.
	WebhookEncryptionKey string `mapstructure:"webhook_encryption_key"` // 32-byte base64 AES-256 key

	// gRPC liveness service.
	GRPCPort int `mapstructure:"grpc_port"`

	// Tracing.
	TracingEnabled      bool    `mapstructure:"tracing_enabled"`
	TracingEndpoint     string  `mapstructure:"tracing_endpoint"`
	TracingServiceName  string  `mapstructure:"tracing_service_name"`
	TracingSamplingRate float64 `mapstructure:"tracing_sampling_rate"`

	// Metrics endpoint authentication.
	MetricsAuthEnabled bool `mapstructure:"metrics_auth_enabled"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/orchestrator/")
	viper.AddConfigPath("$HOME/.orchestrator")
	viper.AddConfigPath(".")

	viper.SetDefault("port", 8180)
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_dsn", "./orchestrator.db")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "json")
	viper.SetDefault("allowed_origins", []string{"http://localhost:5173"})
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)

	viper.SetDefault("engine_id", "")
	viper.SetDefault("dispatcher_workers", 8)
	viper.SetDefault("dispatcher_poll_interval_ms", 250)
	viper.SetDefault("dispatcher_max_backoff_ms", 5000)
	viper.SetDefault("heartbeat_interval_sec", 10)
	viper.SetDefault("lock_steal_multiplier", 2.0)
	viper.SetDefault("driver_rate_limit_per_sec", 10.0)
	viper.SetDefault("driver_rate_limit_burst", 20)

	viper.SetDefault("driver_backend", "memory")
	viper.SetDefault("kubeconfig_path", "")
	viper.SetDefault("kube_namespace", "default")

	viper.SetDefault("auth_mode", "disabled")
	viper.SetDefault("auth_jwt_secret", "")

	viper.SetDefault("webhook_encryption_key", "")

	viper.SetDefault("grpc_port", 50151)

	viper.SetDefault("tracing_enabled", false)
	viper.SetDefault("tracing_endpoint", "")
	viper.SetDefault("tracing_service_name", "clustermgr-engine")
	viper.SetDefault("tracing_sampling_rate", 1.0)

	viper.SetDefault("metrics_auth_enabled", false)

	viper.SetEnvPrefix("ORCHESTRATOR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !cfg.TracingEnabled && os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		cfg.TracingEnabled = true
		if cfg.TracingEndpoint == "" {
			cfg.TracingEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
	}

	if cfg.AuthMode != "disabled" && cfg.AuthJWTSecret == "" {
		return nil, fmt.Errorf("auth_jwt_secret is required when auth_mode=%q", cfg.AuthMode)
	}

	return &cfg, nil
}
