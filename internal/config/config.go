package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds all application configuration.
type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"production"`
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// json or console
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string `env:"JWT_SECRET"`
	// When set, bearer tokens are verified against the identity provider's key set instead of JWTSecret.
	JWKSURL string `env:"JWKS_URL"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"brand-assets"`

	PushGatewayURL string `env:"PUSH_GATEWAY_URL"`

	TenantCacheTTL      time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	BlockListCacheTTL   time.Duration `env:"BLOCKLIST_CACHE_TTL" envDefault:"10m"`
	SessionTokenTTL     time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"24h"`
	WSCommandsPerSecond float64       `env:"WS_COMMANDS_PER_SECOND" envDefault:"5"`
	WSCommandBurst      int           `env:"WS_COMMAND_BURST" envDefault:"10"`
	// Per-user budget for REST sends and reports, per minute. Zero disables it.
	HTTPWritesPerMinute int `env:"HTTP_WRITES_PER_MINUTE" envDefault:"30"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment reports whether development-only inputs (like the tenant override) are allowed.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}
