package config

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8081"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	// AgentID namespaces this agent's entries in the shared session cache.
	// Defaults to the host name.
	AgentID string `env:"AGENT_ID"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Session  SessionConfig
	Identity IdentityConfig
	Touch    TouchConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=backoffice"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// SessionConfig bounds hydration and caching of the session.
type SessionConfig struct {
	CacheTTL          time.Duration `env:"SESSION_CACHE_TTL,          default=5m"`
	UserTimeout       time.Duration `env:"SESSION_USER_TIMEOUT,       default=3s"`
	PermissionTimeout time.Duration `env:"SESSION_PERMISSION_TIMEOUT, default=2s"`
	SafetyTimeout     time.Duration `env:"SESSION_SAFETY_TIMEOUT,     default=8s"`
	LoginSettleDelay  time.Duration `env:"SESSION_LOGIN_SETTLE_DELAY, default=1s"`
}

type IdentityConfig struct {
	TokenTTL time.Duration `env:"IDENTITY_TOKEN_TTL, default=12h"`
}

// TouchConfig drives the background "last access" updates.
type TouchConfig struct {
	Delay   time.Duration `env:"TOUCH_DELAY,   default=1s"`
	Workers int           `env:"TOUCH_WORKERS, default=2"`
}

var errMissingSecret = errors.New("JWT_SECRET is required outside development")

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context, logger zerolog.Logger) (*Config, error) {
	return load(ctx, envconfig.OsLookuper(), logger)
}

func load(ctx context.Context, lookuper envconfig.Lookuper, logger zerolog.Logger) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		logger.Error().Err(err).Msg("failed to load configuration")
		return nil, err
	}
	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			return nil, errMissingSecret
		}
		logger.Warn().Msg("JWT_SECRET not set, using development secret")
		cfg.JWTSecret = "development-only-secret"
	}
	if cfg.AgentID == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "default"
		}
		cfg.AgentID = host
	}
	return &cfg, nil
}
