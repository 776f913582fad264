// Package config handles configuration for the gophauth server: defaults,
// an optional JSON file, environment variables and command-line flags,
// applied in that order.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the server.
//
// Fields:
//   - Port: HTTP listening port.
//   - GRPCAddr: bind address of the internal gRPC endpoint.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the embedded SQLite store.
//   - SecretKey: HMAC secret for signing JWTs (HS256).
//   - HashCost: bcrypt cost factor.
//   - Environment: running environment name, part of the embedded store path.
//   - DataDir: root directory of the embedded store.
//   - TokenValidityDuration: lifetime of issued tokens.
//   - CacheTTL / CacheSize: resolution cache entry lifetime and capacity.
//   - CacheCleanEvents: bus events that clear the users cache namespace.
//   - RedisURL / RedisChannel: optional cross-process invalidation broadcast.
type Config struct {
	Port                  int           `env:"PORT"`
	GRPCAddr              string        `env:"GRPC_ADDR"`
	DatabaseDSN           string        `env:"DATABASE_DSN"`
	SecretKey             string        `env:"JWT_SECRET"`
	HashCost              int           `env:"CRYPT_SALT"`
	Environment           string        `env:"APP_ENV"`
	DataDir               string        `env:"DATA_DIR"`
	TokenValidityDuration time.Duration `env:"TOKEN_VALIDITY"`
	CacheTTL              time.Duration `env:"CACHE_TTL"`
	CacheSize             int           `env:"CACHE_SIZE"`
	CacheCleanEvents      []string      `env:"CACHE_CLEAN_EVENTS" envSeparator:","`
	RedisURL              string        `env:"REDIS_URL"`
	RedisChannel          string        `env:"REDIS_CHANNEL"`
	LogLevel              string        `env:"LOG_LEVEL"`
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secret is insecure and must be overridden in production.
func (c *Config) LoadDefaults() {
	c.Port = 4444
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = ""
	c.SecretKey = "jwt-smarthome-secret"
	c.HashCost = 10
	c.Environment = "development"
	c.DataDir = "./data"
	c.TokenValidityDuration = 60 * 24 * time.Hour
	c.CacheTTL = time.Hour
	c.CacheSize = 10000
	c.CacheCleanEvents = []string{
		"cache.clean.users",
		"users.entity.created",
		"users.entity.updated",
		"users.entity.deleted",
	}
	c.RedisURL = ""
	c.RedisChannel = "gophauth.events"
	c.LogLevel = "info"
}

// HTTPAddr is the listen address derived from Port.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// LoadConfig builds a Config from defaults, then the JSON file named by
// -c/-config, then the environment, then command-line flags.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
