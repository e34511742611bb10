// Package config provides configuration loading and management for the catalog service.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// In development, it loads .env and .env.local files if they exist.
// In production, it relies solely on system environment variables.
// godotenv.Load() does not override already-set environment variables,
// preserving OS env > .env precedence.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// .env.local holds local overrides and is gitignored
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the catalog service.
type Config struct {
	Env  string // Deployment environment (dev, staging, prod)
	Port string // HTTP server port

	DatabaseDSN string        // Document store connection string (PostgreSQL)
	RedisURL    string        // Cache connection URL (empty disables caching)
	CacheTTL    time.Duration // Expiry for cached entry snapshots
	NATSURL     string        // NATS server URL (empty disables event publishing)

	OpenIDWellKnown string // Identity provider discovery document URL
	JWTIssuer       string // Expected issuer for bearer token validation

	AIURL   string // Description enrichment endpoint (empty disables enrichment)
	AIModel string // Model identifier for the enrichment endpoint

	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set.
const (
	defaultPort     = "8080"
	defaultEnv      = "dev"
	defaultCacheTTL = 300 * time.Second
	defaultAIModel  = "phi3"
)

// Load reads environment variables and produces a Config suitable for wiring
// the service. Bearer-token auth is optional: when CATALOG_OPENID_WELLKNOWN
// is unset the API falls back to header-only seller identification.
func Load() (Config, error) {
	cfg := Config{}

	if env, exists := os.LookupEnv("CATALOG_ENV"); exists {
		cfg.Env = env
	} else {
		cfg.Env = defaultEnv
	}

	if port, exists := os.LookupEnv("CATALOG_PORT"); exists {
		cfg.Port = port
	} else {
		cfg.Port = defaultPort
	}

	if dsn, exists := os.LookupEnv("CATALOG_DB_DSN"); exists {
		cfg.DatabaseDSN = dsn
	}

	if redisURL, exists := os.LookupEnv("CATALOG_REDIS_URL"); exists {
		cfg.RedisURL = redisURL
	}

	cfg.CacheTTL = defaultCacheTTL
	if ttl, exists := os.LookupEnv("CATALOG_CACHE_TTL_SECONDS"); exists {
		if secs, err := strconv.Atoi(ttl); err == nil && secs > 0 {
			cfg.CacheTTL = time.Duration(secs) * time.Second
		}
	}

	if natsURL, exists := os.LookupEnv("CATALOG_NATS_URL"); exists {
		cfg.NATSURL = natsURL
	}

	if wellKnown, exists := os.LookupEnv("CATALOG_OPENID_WELLKNOWN"); exists {
		cfg.OpenIDWellKnown = wellKnown
	}

	if issuer, exists := os.LookupEnv("CATALOG_JWT_ISSUER"); exists {
		cfg.JWTIssuer = issuer
	}

	if aiURL, exists := os.LookupEnv("CATALOG_AI_URL"); exists {
		cfg.AIURL = aiURL
	}

	if aiModel, exists := os.LookupEnv("CATALOG_AI_MODEL"); exists {
		cfg.AIModel = aiModel
	} else {
		cfg.AIModel = defaultAIModel
	}

	if corsOrigins, exists := os.LookupEnv("CATALOG_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		for i, origin := range cfg.CORSAllowedOrigins {
			cfg.CORSAllowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	// Token validation needs both the discovery URL and the expected issuer.
	if cfg.OpenIDWellKnown != "" && cfg.JWTIssuer == "" {
		return cfg, fmt.Errorf("CATALOG_JWT_ISSUER is required when CATALOG_OPENID_WELLKNOWN is set")
	}

	return cfg, nil
}
