package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
)

// duration accepts either a Go duration string ("1h") or integer nanoseconds.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// jsonConfig mirrors Config for file decoding. Pointer fields tell an
// absent key apart from a zero value.
type jsonConfig struct {
	Port                  *int      `json:"port"`
	GRPCAddr              *string   `json:"grpc_addr"`
	DatabaseDSN           *string   `json:"database_dsn"`
	SecretKey             *string   `json:"secret_key"`
	HashCost              *int      `json:"hash_cost"`
	Environment           *string   `json:"environment"`
	DataDir               *string   `json:"data_dir"`
	TokenValidityDuration *duration `json:"token_validity_duration"`
	CacheTTL              *duration `json:"cache_ttl"`
	CacheSize             *int      `json:"cache_size"`
	CacheCleanEvents      []string  `json:"cache_clean_events"`
	RedisURL              *string   `json:"redis_url"`
	RedisChannel          *string   `json:"redis_channel"`
	LogLevel              *string   `json:"log_level"`
}

// parseJSON overlays the file named by -c/-config, if any.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var c jsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setIf(&cfg.Port, c.Port)
	setIf(&cfg.GRPCAddr, c.GRPCAddr)
	setIf(&cfg.DatabaseDSN, c.DatabaseDSN)
	setIf(&cfg.SecretKey, c.SecretKey)
	setIf(&cfg.HashCost, c.HashCost)
	setIf(&cfg.Environment, c.Environment)
	setIf(&cfg.DataDir, c.DataDir)
	setIf(&cfg.CacheSize, c.CacheSize)
	setIf(&cfg.RedisURL, c.RedisURL)
	setIf(&cfg.RedisChannel, c.RedisChannel)
	setIf(&cfg.LogLevel, c.LogLevel)
	if c.TokenValidityDuration != nil {
		cfg.TokenValidityDuration = c.TokenValidityDuration.Duration
	}
	if c.CacheTTL != nil {
		cfg.CacheTTL = c.CacheTTL.Duration
	}
	if c.CacheCleanEvents != nil {
		cfg.CacheCleanEvents = c.CacheCleanEvents
	}
	return nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
