// Package config loads client settings from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`
	AppHost   string `env:"APP_HOST,   default=localhost"`
	OpsAddr   string `env:"OPS_ADDR,   default=:9090"`
	OpsToken  string `env:"OPS_TOKEN"`

	API     APIConfig
	Cache   CacheConfig
	Session SessionConfig
	Mongo   MongoConfig
	Redis   RedisConfig
}

type APIConfig struct {
	// BaseURL overrides the host-based choice below when set.
	BaseURL          string        `env:"API_BASE_URL"`
	LocalURL         string        `env:"API_LOCAL_URL,         default=http://localhost:5001/marketplace/us-central1/api"`
	ProductionURL    string        `env:"API_PRODUCTION_URL,    default=https://api.marketplace.example.com"`
	Timeout          time.Duration `env:"API_TIMEOUT,           default=10s"`
	MaxRetries       int           `env:"API_MAX_RETRIES,       default=3"`
	RetryBaseDelay   time.Duration `env:"API_RETRY_BASE_DELAY,  default=250ms"`
	RetryMaxDelay    time.Duration `env:"API_RETRY_MAX_DELAY,   default=4s"`
	BreakerThreshold int           `env:"API_BREAKER_THRESHOLD, default=5"`
	// BreakerCooldown of 0 keeps the breaker open until it is reset.
	BreakerCooldown  time.Duration `env:"API_BREAKER_COOLDOWN,  default=0s"`
	RateLimit        float64       `env:"API_RATE_LIMIT,        default=20"`
	RateBurst        int           `env:"API_RATE_BURST,        default=40"`
}

type CacheConfig struct {
	Backend     string        `env:"CACHE_BACKEND,      default=memory"`
	TTL         time.Duration `env:"CACHE_TTL,          default=5m"`
	StaleWindow time.Duration `env:"CACHE_STALE_WINDOW, default=5m"`
	Workers     int           `env:"CACHE_WORKERS,      default=4"`
}

type SessionConfig struct {
	Backend       string `env:"SESSION_BACKEND,        default=file"`
	Path          string `env:"SESSION_PATH,           default=~/.marketplace/session.json"`
	StorageKey    string `env:"SESSION_STORAGE_KEY,    default=userData"`
	EncryptionKey string `env:"SESSION_ENCRYPTION_KEY"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=marketplace_client"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	DB       int    `env:"REDIS_DB,       default=0"`
	Password string `env:"REDIS_PASSWORD"`
	Prefix   string `env:"REDIS_PREFIX,   default=marketplace:cache:"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendMongo  = "mongo"
	BackendNone   = "none"
)

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", c.Cache.Backend)
	}
	switch c.Session.Backend {
	case BackendFile, BackendMongo, BackendNone:
	default:
		return fmt.Errorf("SESSION_BACKEND must be file, mongo or none, got %q", c.Session.Backend)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must be at least 0")
	}
	return nil
}

// ResolveBaseURL picks the API root: the explicit override, the local
// emulator when running on a loopback host, the production URL otherwise.
func (c *Config) ResolveBaseURL() string {
	if c.API.BaseURL != "" {
		return c.API.BaseURL
	}
	switch c.AppHost {
	case "localhost", "127.0.0.1", "::1":
		return c.API.LocalURL
	}
	return c.API.ProductionURL
}
