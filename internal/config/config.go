package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"queuedesk/internal/cache"
	"queuedesk/internal/database"
	"queuedesk/internal/external"
	"queuedesk/internal/messaging"
	"queuedesk/internal/telemetry"

	"github.com/spf13/viper"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	ShutdownGrace  time.Duration
	CORSOrigin     string

	// Timezone that defines "today" for ticket numbers and statistics
	Location *time.Location

	// Performance monitoring
	PprofEnabled bool
	PprofPort    string

	// StoreDriver selects the persistence layer: postgres or memory
	StoreDriver string

	Database      database.Config
	NATS          NATSConfig
	Redis         cache.Config
	Elasticsearch ElasticsearchConfig
	Auth          AuthConfig
	Telemetry     telemetry.Config
	Realtime      RealtimeConfig
	Jobs          JobsConfig
}

type NATSConfig struct {
	messaging.Config
	Enabled bool
}

// ElasticsearchConfig содержит конфигурацию для подключения к Elasticsearch
type ElasticsearchConfig struct {
	Enabled    bool
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
	// Refresh policy for index writes: "", "true", "false" or "wait_for"
	Refresh string
}

// AuthConfig selects how bearer tokens are validated
type AuthConfig struct {
	// Mode is "jwt" (shared secret) or "remote" (auth service)
	Mode      string
	JWTSecret string
	Issuer    string
	Leeway    time.Duration
	Remote    external.AuthConfig
	// Identity cache in Valkey; zero TTL disables it
	CacheTTL time.Duration
}

type RealtimeConfig struct {
	Prefix     string
	SendBuffer int
	// Timeout for recomputing a projection after an event
	SnapshotTimeout time.Duration
}

type JobsConfig struct {
	ReconcileEnabled  bool
	ReconcileInterval time.Duration
	// How many past days (today included) each reconcile run checks
	ReconcileDays int
}

// Load читает конфигурацию из переменных окружения и необязательного файла CONFIG_FILE
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	env := &source{v: v}

	tz := env.getEnv("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		Port:           env.getEnv("PORT", "8081"),
		GinMode:        env.getEnv("GIN_MODE", "debug"),
		LogLevel:       env.getEnv("LOG_LEVEL", "info"),
		LogFormat:      env.getEnv("LOG_FORMAT", "json"),
		RequestTimeout: env.getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownGrace:  env.getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
		CORSOrigin:     env.getEnv("CORS_ORIGIN", "*"),
		Location:       loc,

		PprofEnabled: env.getEnvBool("PPROF_ENABLED", false),
		PprofPort:    env.getEnv("PPROF_PORT", "6060"),

		StoreDriver: env.getEnv("STORE_DRIVER", "postgres"),

		Database: database.Config{
			Host:               env.getEnv("DB_HOST", "localhost"),
			Port:               env.getEnvInt("DB_PORT", 5432),
			User:               env.getEnv("DB_USER", "queuedesk"),
			Password:           env.getEnv("DB_PASSWORD", "queuedesk"),
			DBName:             env.getEnv("DB_NAME", "queuedesk"),
			SSLMode:            env.getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       env.getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       env.getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: env.getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: env.getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: NATSConfig{
			Enabled: env.getEnvBool("NATS_ENABLED", false),
			Config: messaging.Config{
				URL:       env.getEnv("NATS_URL", "nats://localhost:4222"),
				ClusterID: env.getEnv("NATS_CLUSTER_ID", "queuedesk"),
				ClientID:  env.getEnv("NATS_CLIENT_ID", "queuedesk-api"),
			},
		},

		Redis: cache.Config{
			Addr:      env.getEnv("VALKEY_ADDR", "localhost:6379"),
			Password:  env.getEnv("VALKEY_PASSWORD", ""),
			DB:        env.getEnvInt("VALKEY_DB", 0),
			KeyPrefix: env.getEnv("VALKEY_KEY_PREFIX", "queuedesk:identity:"),
		},

		Elasticsearch: ElasticsearchConfig{
			Enabled:    env.getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:        env.getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Index:      env.getEnv("ELASTICSEARCH_INDEX", "tickets"),
			Username:   env.getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   env.getEnv("ELASTICSEARCH_PASSWORD", ""),
			MaxRetries: env.getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
			Timeout:    env.getEnvDuration("ELASTICSEARCH_TIMEOUT", 30*time.Second),
			Refresh:    env.getEnv("ELASTICSEARCH_REFRESH", ""),
		},

		Auth: AuthConfig{
			Mode:      env.getEnv("AUTH_MODE", "jwt"),
			JWTSecret: env.getEnv("JWT_SECRET", ""),
			Issuer:    env.getEnv("JWT_ISSUER", ""),
			Leeway:    env.getEnvDuration("JWT_LEEWAY", 30*time.Second),
			Remote: external.AuthConfig{
				BaseURL: env.getEnv("AUTH_SERVICE_URL", "http://localhost:5000"),
				Timeout: env.getEnvDuration("AUTH_SERVICE_TIMEOUT", 5*time.Second),
			},
			CacheTTL: env.getEnvDuration("AUTH_CACHE_TTL", 0),
		},

		Telemetry: telemetry.Config{
			Enabled:        env.getEnvBool("OTEL_ENABLED", false),
			ServiceName:    env.getEnv("OTEL_SERVICE_NAME", "queuedesk"),
			ServiceVersion: env.getEnv("APP_VERSION", "dev"),
			Environment:    env.getEnv("APP_ENVIRONMENT", "development"),
			CollectorAddr:  env.getEnv("OTEL_COLLECTOR_ADDR", "localhost:4317"),
			Insecure:       env.getEnvBool("OTEL_INSECURE", true),
			SampleRatio:    env.getEnvFloat("OTEL_SAMPLE_RATIO", 1.0),
		},

		Realtime: RealtimeConfig{
			Prefix:          env.getEnv("REALTIME_PREFIX", "/realtime"),
			SendBuffer:      env.getEnvInt("REALTIME_SEND_BUFFER", 16),
			SnapshotTimeout: env.getEnvDuration("REALTIME_SNAPSHOT_TIMEOUT", 5*time.Second),
		},

		Jobs: JobsConfig{
			ReconcileEnabled:  env.getEnvBool("RECONCILE_ENABLED", true),
			ReconcileInterval: env.getEnvDuration("RECONCILE_INTERVAL", 15*time.Minute),
			ReconcileDays:     env.getEnvInt("RECONCILE_DAYS", 2),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.Auth.Mode {
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	case "remote":
		if c.Auth.Remote.BaseURL == "" {
			return errors.New("AUTH_SERVICE_URL is required when AUTH_MODE=remote")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.Auth.Mode)
	}

	if c.Realtime.SendBuffer <= 0 {
		return errors.New("REALTIME_SEND_BUFFER must be positive")
	}
	if c.Jobs.ReconcileEnabled && c.Jobs.ReconcileInterval <= 0 {
		return errors.New("RECONCILE_INTERVAL must be positive")
	}
	return nil
}

// source reads settings through viper: environment first, then CONFIG_FILE
type source struct {
	v *viper.Viper
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func (s *source) getEnv(key, defaultValue string) string {
	if value := s.v.GetString(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func (s *source) getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(s.v.GetString(key)); err == nil {
		return value
	}
	return defaultValue
}

func (s *source) getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(s.v.GetString(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30")
func (s *source) getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := s.v.GetString(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs := s.getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func (s *source) getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(s.v.GetString(key), 64); err == nil {
		return value
	}
	return defaultValue
}
