package cache

import (
	"context"
	"time"
)

// Cache is the key/value contract shared by the in-process and redis backends.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)

	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error

	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) bool

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// "local"/"gocache" or "redis"
	Type string `json:"type" yaml:"type" env:"CACHE_TYPE" default:"local"`

	Redis RedisConfig `json:"redis" yaml:"redis"`

	Local LocalConfig `json:"local" yaml:"local"`
}

type RedisConfig struct {
	Addr string `json:"addr" yaml:"addr" env:"REDIS_ADDR" default:"localhost:6379"`

	Password string `json:"password" yaml:"password" env:"REDIS_PASSWORD"`

	DB int `json:"db" yaml:"db" env:"REDIS_DB" default:"0"`

	PoolSize int `json:"pool_size" yaml:"pool_size" env:"REDIS_POOL_SIZE" default:"10"`

	DialTimeout time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"REDIS_DIAL_TIMEOUT" default:"5s"`
}

type LocalConfig struct {
	DefaultExpiration time.Duration `json:"default_expiration" yaml:"default_expiration" env:"LOCAL_CACHE_DEFAULT_EXPIRATION" default:"10m"`

	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" env:"LOCAL_CACHE_CLEANUP_INTERVAL" default:"10m"`
}
