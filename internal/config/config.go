package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store mode constants.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Plan     PlanConfig
	Score    ScoreConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Mode is "postgres" for the PostGIS-backed store or "memory" for
	// the in-process store.
	Mode string
}

// DatabaseConfig holds PostgreSQL connection configuration. Only
// consulted when the store mode is "postgres".
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// RedisConfig holds the score cache connection configuration. An empty
// address disables Redis and falls back to the in-process cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PlanConfig holds plan engine tuning.
type PlanConfig struct {
	// BaseGeolevel is the geolevel id of the smallest assignable units.
	BaseGeolevel int
	// SimplifyTolerance controls the simplified display geometry kept
	// alongside each district version. Zero disables simplification.
	SimplifyTolerance float64
}

// ScoreConfig holds score evaluation tuning.
type ScoreConfig struct {
	CacheTTL time.Duration
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE", StorePostgres)
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "redraw")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BASE_GEOLEVEL", 1)
	v.SetDefault("SIMPLIFY_TOLERANCE", 0.0)
	v.SetDefault("SCORE_CACHE_TTL_SECONDS", 3600)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Store: StoreConfig{
			Mode: v.GetString("STORE"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Plan: PlanConfig{
			BaseGeolevel:      v.GetInt("BASE_GEOLEVEL"),
			SimplifyTolerance: v.GetFloat64("SIMPLIFY_TOLERANCE"),
		},
		Score: ScoreConfig{
			CacheTTL: time.Duration(v.GetInt("SCORE_CACHE_TTL_SECONDS")) * time.Second,
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Store.Mode != StoreMemory && c.Store.Mode != StorePostgres {
		return fmt.Errorf("STORE must be %q or %q", StoreMemory, StorePostgres)
	}

	// Database config only matters for the postgres store
	if c.Store.Mode == StorePostgres {
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required")
		}
		if c.Database.Port == "" {
			return fmt.Errorf("DB_PORT is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("DB_NAME is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("DB_USER is required")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
		if c.Database.PoolMin < 0 {
			return fmt.Errorf("DB_POOL_MIN must be non-negative")
		}
		if c.Database.PoolMax < 1 {
			return fmt.Errorf("DB_POOL_MAX must be at least 1")
		}
		if c.Database.PoolMin > c.Database.PoolMax {
			return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
		}
	}

	if c.Plan.BaseGeolevel < 1 {
		return fmt.Errorf("BASE_GEOLEVEL must be at least 1")
	}
	if c.Plan.SimplifyTolerance < 0 {
		return fmt.Errorf("SIMPLIFY_TOLERANCE must be non-negative")
	}
	if c.Score.CacheTTL < 0 {
		return fmt.Errorf("SCORE_CACHE_TTL_SECONDS must be non-negative")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
