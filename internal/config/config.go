package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything the server and tools read from the environment.
type Config struct {
	Port   string
	AppEnv string

	DBDriver    string
	DBPath      string
	DatabaseURL string
	SeedPath    string

	NominatimURL     string
	UserAgent        string
	RoutingEndpoints []string
	RoutingUpstream  string
	RequestTimeout   time.Duration

	RedisURL      string
	RouteCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

var defaults = map[string]any{
	"PORT":                  "8080",
	"APP_ENV":               "development",
	"DB_DRIVER":             "sqlite",
	"DB_PATH":               "data/app.db",
	"SEED_PATH":             "data/seeds/points.json",
	"NOMINATIM_URL":         "https://nominatim.openstreetmap.org",
	"USER_AGENT":            "distance-matrix-service/1.0",
	"ROUTING_ENDPOINTS":     "https://routing.openstreetmap.de/routed-car/route/v1/driving,https://router.project-osrm.org/route/v1/driving",
	"ROUTING_UPSTREAM":      "https://router.project-osrm.org/route/v1/driving",
	"REQUEST_TIMEOUT":       "10s",
	"ROUTE_CACHE_TTL":       "24h",
	"KAFKA_TOPIC":           "distance-results",
	"RATE_LIMIT_PER_SECOND": 20.0,
	"RATE_LIMIT_BURST":      40,
}

// Load reads an optional .env file, then binds environment variables over defaults.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	timeout, err := time.ParseDuration(v.GetString("REQUEST_TIMEOUT"))
	if err != nil {
		return nil, fmt.Errorf("load config: REQUEST_TIMEOUT: %w", err)
	}
	ttl, err := time.ParseDuration(v.GetString("ROUTE_CACHE_TTL"))
	if err != nil {
		return nil, fmt.Errorf("load config: ROUTE_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Port:               v.GetString("PORT"),
		AppEnv:             v.GetString("APP_ENV"),
		DBDriver:           strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:             v.GetString("DB_PATH"),
		DatabaseURL:        v.GetString("DATABASE_URL"),
		SeedPath:           v.GetString("SEED_PATH"),
		NominatimURL:       strings.TrimRight(v.GetString("NOMINATIM_URL"), "/"),
		UserAgent:          v.GetString("USER_AGENT"),
		RoutingEndpoints:   splitList(v.GetString("ROUTING_ENDPOINTS")),
		RoutingUpstream:    strings.TrimRight(v.GetString("ROUTING_UPSTREAM"), "/"),
		RequestTimeout:     timeout,
		RedisURL:           v.GetString("REDIS_URL"),
		RouteCacheTTL:      ttl,
		KafkaBrokers:       splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:         v.GetString("KAFKA_TOPIC"),
		RateLimitPerSecond: v.GetFloat64("RATE_LIMIT_PER_SECOND"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("DB_PATH is required for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
