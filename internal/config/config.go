package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// placeholderSecrets are sample values that must never sign admin tokens
var placeholderSecrets = map[string]bool{
	"your-secret-key-change-in-production": true,
	"change-me":                            true,
}

// Config holds application configuration
type Config struct {
	Port      string `mapstructure:"port"`
	DBDriver  string `mapstructure:"db_driver"` // sqlite or pgx
	DBPath    string `mapstructure:"db_path"`   // file path for sqlite, DSN for pgx
	JWTSecret string `mapstructure:"jwt_secret"`

	OverpassURL      string        `mapstructure:"overpass_url"`
	GraphTimeout     time.Duration `mapstructure:"graph_timeout"`
	GraphCacheTTL    time.Duration `mapstructure:"graph_cache_ttl"` // 0 disables the cache
	GraphCacheSize   int           `mapstructure:"graph_cache_size"`
	MaxRouteDelta    float64       `mapstructure:"max_route_delta"`
	MaxBBoxAreaKm2   float64       `mapstructure:"max_bbox_area_km2"`
	RouteAlpha       float64       `mapstructure:"route_alpha"`
	RouteDefaultRisk int           `mapstructure:"route_default_risk"`

	AggregationInterval time.Duration `mapstructure:"aggregation_interval"` // 0 disables the in-process schedule
	AggregationWorkers  int           `mapstructure:"aggregation_workers"`

	RateLimit      float64 `mapstructure:"rate_limit"` // requests per second per client IP
	RateBurst      int     `mapstructure:"rate_burst"`
	TraceExporter  string  `mapstructure:"trace_exporter"` // stdout or none
	SourceRegistry string  `mapstructure:"source_registry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", ":8080")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_path", "./data/safety.db")
	v.SetDefault("jwt_secret", "") // required; registered so JWT_SECRET binds

	v.SetDefault("overpass_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("graph_timeout", 15*time.Second)
	v.SetDefault("graph_cache_ttl", 10*time.Minute)
	v.SetDefault("graph_cache_size", 64)
	v.SetDefault("max_route_delta", 0.05)
	v.SetDefault("max_bbox_area_km2", 40.0)
	v.SetDefault("route_alpha", 5.0)
	v.SetDefault("route_default_risk", 10)

	v.SetDefault("aggregation_interval", time.Duration(0))
	v.SetDefault("aggregation_workers", 4)

	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("trace_exporter", "none")
	v.SetDefault("source_registry", "./sources.yml")
}

// Load reads configuration from defaults, an optional config file and
// environment variables (PORT, DB_PATH, JWT_SECRET, ...), in increasing
// precedence. An empty path searches for config.yaml in the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("unsupported db_driver %q", c.DBDriver)
	}
	switch c.TraceExporter {
	case "stdout", "none":
	default:
		return fmt.Errorf("unsupported trace_exporter %q", c.TraceExporter)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if placeholderSecrets[c.JWTSecret] {
		return fmt.Errorf("jwt_secret is a placeholder value; set a real secret")
	}
	if c.GraphTimeout <= 0 {
		return fmt.Errorf("graph_timeout must be positive")
	}
	if c.AggregationWorkers <= 0 {
		return fmt.Errorf("aggregation_workers must be positive")
	}
	if c.RouteAlpha < 0 {
		return fmt.Errorf("route_alpha must not be negative")
	}
	return nil
}
