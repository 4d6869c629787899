package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvStatePostgres      = "PLUGPEP_STATE_POSTGRES"
	EnvStateRedis         = "PLUGPEP_STATE_REDIS"
	EnvStateRedisAddr     = "PLUGPEP_STATE_REDIS_ADDR"
	EnvStateRedisPassword = "PLUGPEP_STATE_REDIS_PASSWORD"
	EnvStateRedisDB       = "PLUGPEP_STATE_REDIS_DB"
	EnvStateRedisTTL      = "PLUGPEP_STATE_REDIS_TTL"
	EnvStateRedisPrefix   = "PLUGPEP_STATE_REDIS_PREFIX"
	EnvStateLockTTL       = "PLUGPEP_STATE_LOCK_TTL"
)

// StateConfig selects the snapshot mirrors written after the state file.
// The Postgres mirror uses the [database] connection.
type StateConfig struct {
	Postgres      bool   `toml:"postgres"`
	Redis         bool   `toml:"redis"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	RedisTTL      string `toml:"redis_ttl"`
	RedisPrefix   string `toml:"redis_prefix"`
	LockTTL       string `toml:"lock_ttl"`
}

// RedisTTLDuration returns RedisTTL as a time.Duration.
func (c *StateConfig) RedisTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.RedisTTL)
	return d
}

// LockTTLDuration returns LockTTL as a time.Duration.
func (c *StateConfig) LockTTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockTTL)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *StateConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *StateConfig) Merge(overlay *StateConfig) {
	if overlay.Postgres {
		c.Postgres = true
	}
	if overlay.Redis {
		c.Redis = true
	}
	if overlay.RedisAddr != "" {
		c.RedisAddr = overlay.RedisAddr
	}
	if overlay.RedisPassword != "" {
		c.RedisPassword = overlay.RedisPassword
	}
	if overlay.RedisDB != 0 {
		c.RedisDB = overlay.RedisDB
	}
	if overlay.RedisTTL != "" {
		c.RedisTTL = overlay.RedisTTL
	}
	if overlay.RedisPrefix != "" {
		c.RedisPrefix = overlay.RedisPrefix
	}
	if overlay.LockTTL != "" {
		c.LockTTL = overlay.LockTTL
	}
}

func (c *StateConfig) loadDefaults() {
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.RedisTTL == "" {
		c.RedisTTL = "168h"
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = "plugpep"
	}
	if c.LockTTL == "" {
		c.LockTTL = "30m"
	}
}

func (c *StateConfig) loadEnv() {
	set := func(envVar string, field *string) {
		if v := os.Getenv(envVar); v != "" {
			*field = v
		}
	}

	envBool(EnvStatePostgres, &c.Postgres)
	envBool(EnvStateRedis, &c.Redis)
	set(EnvStateRedisAddr, &c.RedisAddr)
	set(EnvStateRedisPassword, &c.RedisPassword)
	set(EnvStateRedisTTL, &c.RedisTTL)
	set(EnvStateRedisPrefix, &c.RedisPrefix)
	set(EnvStateLockTTL, &c.LockTTL)

	if v := os.Getenv(EnvStateRedisDB); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RedisDB = n
		}
	}
}

func (c *StateConfig) validate() error {
	if d, err := time.ParseDuration(c.RedisTTL); err != nil || d < 0 {
		return fmt.Errorf("invalid redis_ttl %q", c.RedisTTL)
	}
	if d, err := time.ParseDuration(c.LockTTL); err != nil || d <= 0 {
		return fmt.Errorf("invalid lock_ttl %q", c.LockTTL)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid redis_db %d", c.RedisDB)
	}
	return nil
}
