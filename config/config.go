// Package config loads daemon configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store driver names accepted by REVENUE_STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// ServerConfig holds everything the revenued daemon needs to start.
type ServerConfig struct {
	Addr string

	StoreDriver   string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	SnapshotCacheTTL time.Duration
	JanitorInterval  time.Duration
	RequestTimeout   time.Duration

	OwnerToken string
	AdminToken string

	MetricsEnabled bool
}

// LoadFromEnv reads the daemon configuration from environment variables.
func LoadFromEnv() (ServerConfig, error) {
	addr := strings.TrimSpace(os.Getenv("PORT"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("REVENUE_ADDR", ":8080")
	}

	cfg := ServerConfig{
		Addr:             addr,
		StoreDriver:      strings.ToLower(envDefault("REVENUE_STORE_DRIVER", DriverMemory)),
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		MongoURI:         strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDatabase:    envDefault("MONGO_DATABASE", "revenue"),
		SnapshotCacheTTL: envDurationDefault("REVENUE_SNAPSHOT_CACHE_TTL", 30*time.Second),
		JanitorInterval:  envDurationDefault("REVENUE_JANITOR_INTERVAL", time.Minute),
		RequestTimeout:   envDurationDefault("REVENUE_REQUEST_TIMEOUT", 30*time.Second),
		OwnerToken:       strings.TrimSpace(os.Getenv("REVENUE_OWNER_TOKEN")),
		AdminToken:       strings.TrimSpace(os.Getenv("REVENUE_ADMIN_TOKEN")),
		MetricsEnabled:   envBoolDefault("REVENUE_METRICS_ENABLED", true),
	}

	switch cfg.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMongo:
		if cfg.MongoURI == "" {
			return cfg, fmt.Errorf("MONGO_URI is required for the mongo driver")
		}
	default:
		return cfg, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if cfg.OwnerToken == "" {
		return cfg, fmt.Errorf("REVENUE_OWNER_TOKEN is required")
	}
	if cfg.AdminToken == "" {
		return cfg, fmt.Errorf("REVENUE_ADMIN_TOKEN is required")
	}
	if cfg.OwnerToken == cfg.AdminToken {
		return cfg, fmt.Errorf("REVENUE_OWNER_TOKEN and REVENUE_ADMIN_TOKEN must differ")
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
