package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Application
	App AppConfig `mapstructure:"app"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Click ingest pipeline
	Ingest IngestConfig `mapstructure:"ingest"`

	// Geo lookup
	Geo GeoConfig `mapstructure:"geo"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

type AppConfig struct {
	ListenAddr     string   `mapstructure:"listen_addr"`
	BaseURL        string   `mapstructure:"base_url"`
	CodeLength     int      `mapstructure:"code_length"`
	AliasMinLength int      `mapstructure:"alias_min_length"`
	AliasMaxLength int      `mapstructure:"alias_max_length"`
	ReservedPaths  []string `mapstructure:"reserved_paths"`
	CacheTTL       string   `mapstructure:"cache_ttl"`
	ResolveTimeout string   `mapstructure:"resolve_timeout"`
}

type PostgresConfig struct {
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type IngestConfig struct {
	BufferSize     int    `mapstructure:"buffer_size"`
	Workers        int    `mapstructure:"workers"`
	PublishTimeout string `mapstructure:"publish_timeout"`
	ReconcileEvery string `mapstructure:"reconcile_every"`
	ReconcileDays  int    `mapstructure:"reconcile_days"`
}

type GeoConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Timeout  string `mapstructure:"timeout"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.listen_addr", ":8080")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.code_length", 7)
	v.SetDefault("app.alias_min_length", 3)
	v.SetDefault("app.alias_max_length", 32)
	v.SetDefault("app.reserved_paths", []string{"api", "healthz", "metrics", "static", "media", "admin"})
	v.SetDefault("app.cache_ttl", "24h")
	v.SetDefault("app.resolve_timeout", "2s")

	v.SetDefault("ingest.buffer_size", 1024)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.publish_timeout", "3s")
	v.SetDefault("ingest.reconcile_every", "15m")
	v.SetDefault("ingest.reconcile_days", 2)

	v.SetDefault("geo.enabled", true)
	v.SetDefault("geo.endpoint", "http://ip-api.com/json")
	v.SetDefault("geo.timeout", "2s")
}

func bindEnvVars(v *viper.Viper) {
	// Application
	v.BindEnv("app.listen_addr", "APP_LISTEN_ADDR")
	v.BindEnv("app.base_url", "APP_BASE_URL")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// Geo
	v.BindEnv("geo.enabled", "GEO_ENABLED")
	v.BindEnv("geo.endpoint", "GEO_ENDPOINT")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}

// Duration parses a config duration string, falling back when empty or bad.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
