package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "RUNTIME_AUTHZ"

var ErrMissingSecret = errors.New("required secret is not configured")

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Database struct {
		DSN          string `mapstructure:"dsn"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		AutoMigrate  bool   `mapstructure:"auto_migrate"`
	} `mapstructure:"database"`

	Auth struct {
		APIKey             string `mapstructure:"api_key"`
		ClientJWTSecret    string `mapstructure:"client_jwt_secret"`
		CandidateJWTSecret string `mapstructure:"candidate_jwt_secret"`
		HeaderKeys         struct {
			UserID   string `mapstructure:"user_id"`
			TenantID string `mapstructure:"tenant_id"`
			Role     string `mapstructure:"role"`
			AuthType string `mapstructure:"auth_type"`
			Decision string `mapstructure:"decision"`
		} `mapstructure:"header_keys"`
	} `mapstructure:"auth"`

	Tenant struct {
		Header         string        `mapstructure:"header"`
		BaseDomain     string        `mapstructure:"base_domain"`
		DirectoryURL   string        `mapstructure:"directory_url"`
		DirectoryToken string        `mapstructure:"directory_token"`
		CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	} `mapstructure:"tenant"`

	Upstream struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"upstream"`

	Observability struct {
		MetricsEnabled     bool    `mapstructure:"metrics_enabled"`
		TraceEnabled       bool    `mapstructure:"trace_enabled"`
		TracingEndpointURL string  `mapstructure:"tracing_endpoint_url"`
		TraceSampleRatio   float64 `mapstructure:"trace_sample_ratio"`
		TraceInsecure      bool    `mapstructure:"trace_insecure"`
		LogLevel           string  `mapstructure:"log_level"`
		Format             string  `mapstructure:"log_format"`
		LogSource          bool    `mapstructure:"log_source"`
	} `mapstructure:"observability"`

	CORS struct {
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"cors"`
}

// Validate reports the first missing secret. Secrets are required at
// startup, never checked per request.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"auth.api_key", c.Auth.APIKey},
		{"auth.client_jwt_secret", c.Auth.ClientJWTSecret},
		{"auth.candidate_jwt_secret", c.Auth.CandidateJWTSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingSecret, r.key)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8123")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.client_jwt_secret", "")
	v.SetDefault("auth.candidate_jwt_secret", "")
	v.SetDefault("auth.header_keys.user_id", "X-User-ID")
	v.SetDefault("auth.header_keys.tenant_id", "X-Tenant-ID")
	v.SetDefault("auth.header_keys.role", "X-User-Role")
	v.SetDefault("auth.header_keys.auth_type", "X-Auth-Type")
	v.SetDefault("auth.header_keys.decision", "X-Authz-Decision")

	v.SetDefault("tenant.header", "X-Tenant-ID")
	v.SetDefault("tenant.base_domain", "")
	v.SetDefault("tenant.directory_url", "")
	v.SetDefault("tenant.directory_token", "")
	v.SetDefault("tenant.cache_ttl", 5*time.Minute)

	v.SetDefault("upstream.url", "")

	v.SetDefault("observability.metrics_enabled", false)
	v.SetDefault("observability.trace_enabled", false)
	v.SetDefault("observability.tracing_endpoint_url", "")
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.trace_insecure", true)
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.log_source", false)

	v.SetDefault("cors.allowed_origins", []string{})
}

// bindLegacyEnv keeps the secret names used by existing deployments working.
func bindLegacyEnv(v *viper.Viper) error {
	legacy := map[string]string{
		"auth.api_key":              "API_KEY_SECRET",
		"auth.client_jwt_secret":    "JWT_SECRET_KEY",
		"auth.candidate_jwt_secret": "CANDIDATE_JWT_SECRET_KEY",
	}
	for key, env := range legacy {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Load reads config.yaml (optional), the APP_ENV overlay and the
// environment, then validates the result.
func Load() (*Config, error) {
	v := viper.New()
	logger := slog.Default()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Info("No config file found, using defaults and environment")
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			logger.Info("No environment-specific config (optional)", slog.String("env", env))
		} else {
			logger.Info("Environment-specific config loaded", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		slog.Default().Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}
