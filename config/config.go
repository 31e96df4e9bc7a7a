// Package config loads nscache settings from YAML with environment overrides.
//
// Example:
//
//	redis:
//	  host: cache.internal
//	  port: 6379
//	  password: ""
//	  connectTimeout: 5s
//	namespace: "deviceservice:"
//	retry:
//	  maxAttempts: 5
//	  baseDelay: 1s
//	near:
//	  kind: ristretto
//	  ttl: 30s
//	  maxBytes: 67108864
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/nscache"
	"github.com/unkn0wn-root/nscache/near"
	"github.com/unkn0wn-root/nscache/near/bigcache"
	"github.com/unkn0wn-root/nscache/near/ristretto"
	"github.com/unkn0wn-root/nscache/store/redis"
)

// Environment variables that override the file.
const (
	EnvRedisHost     = "NSCACHE_REDIS_HOST"
	EnvRedisPort     = "NSCACHE_REDIS_PORT"
	EnvRedisPassword = "NSCACHE_REDIS_PASSWORD"
	EnvNamespace     = "NSCACHE_NAMESPACE"
)

// Near cache kinds.
const (
	NearNone      = ""
	NearRistretto = "ristretto"
	NearBigcache  = "bigcache"
)

type Config struct {
	Redis     RedisConfig `yaml:"redis"`
	Namespace string      `yaml:"namespace"`
	Retry     RetryConfig `yaml:"retry"`
	ScanCount int64       `yaml:"scanCount"`
	Near      NearConfig  `yaml:"near"`
}

type RedisConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	DB             int      `yaml:"db"`
	ConnectTimeout Duration `yaml:"connectTimeout"`
	ReadTimeout    Duration `yaml:"readTimeout"`
	WriteTimeout   Duration `yaml:"writeTimeout"`
	PoolSize       int      `yaml:"poolSize"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"maxAttempts"`
	BaseDelay   Duration `yaml:"baseDelay"`
	MaxDelay    Duration `yaml:"maxDelay"`
	Sticky      bool     `yaml:"sticky"`
}

type NearConfig struct {
	Kind     string   `yaml:"kind"`
	TTL      Duration `yaml:"ttl"`
	MaxBytes int64    `yaml:"maxBytes"` // ristretto cost budget / bigcache hard limit
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Redis:     RedisConfig{Host: "localhost", Port: redis.DefaultPort},
		Namespace: nscache.DefaultNamespace,
	}
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadFromReader(bytes.NewReader(data))
}

// LoadFromReader is Load for an already opened source.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the NSCACHE_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Redis.Host = getEnvOrDefault(EnvRedisHost, c.Redis.Host)
	c.Redis.Password = getEnvOrDefault(EnvRedisPassword, c.Redis.Password)
	c.Namespace = getEnvOrDefault(EnvNamespace, c.Namespace)
	if v := os.Getenv(EnvRedisPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRedisPort, v, err)
		}
		c.Redis.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Redis.Host == "" {
		errs = append(errs, errors.New("redis.host is required"))
	}
	if c.Redis.Port < 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis.port %d out of range", c.Redis.Port))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.maxAttempts must not be negative"))
	}
	if c.ScanCount < 0 {
		errs = append(errs, errors.New("scanCount must not be negative"))
	}
	switch c.Near.Kind {
	case NearNone:
	case NearRistretto, NearBigcache:
		if c.Near.MaxBytes <= 0 {
			errs = append(errs, fmt.Errorf("near.maxBytes is required for %s", c.Near.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown near.kind %q", c.Near.Kind))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// RedisStore converts the redis section for store/redis.
func (c *Config) RedisStore() redis.Config {
	return redis.Config{
		Host:         c.Redis.Host,
		Port:         c.Redis.Port,
		Username:     c.Redis.Username,
		Password:     c.Redis.Password,
		DB:           c.Redis.DB,
		DialTimeout:  c.Redis.ConnectTimeout.Duration(),
		ReadTimeout:  c.Redis.ReadTimeout.Duration(),
		WriteTimeout: c.Redis.WriteTimeout.Duration(),
		PoolSize:     c.Redis.PoolSize,
	}
}

func (c *Config) RetryPolicy() nscache.RetryPolicy {
	return nscache.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		BaseDelay:   c.Retry.BaseDelay.Duration(),
		MaxDelay:    c.Retry.MaxDelay.Duration(),
	}
}

// NewNear builds the configured near cache, or nil when none is configured.
func (c *Config) NewNear(ctx context.Context) (near.Cache, error) {
	switch c.Near.Kind {
	case NearRistretto:
		nc, err := ristretto.New(ristretto.Config{
			// ~10 counters per expected 1KiB entry
			NumCounters: max(c.Near.MaxBytes/1024*10, 1000),
			MaxCost:     c.Near.MaxBytes,
		})
		if err != nil {
			return nil, err
		}
		return nc, nil
	case NearBigcache:
		nc, err := bigcache.New(ctx, bigcache.Config{
			LifeWindow:         c.Near.TTL.Duration(),
			HardMaxCacheSizeMB: int(max(c.Near.MaxBytes>>20, 1)),
		})
		if err != nil {
			return nil, err
		}
		return nc, nil
	}
	return nil, nil
}

// Options assembles client options. The returned near cache, if any, is
// closed by Client.Close.
func (c *Config) Options(ctx context.Context, log nscache.Logger, hooks nscache.Hooks) (nscache.Options, error) {
	nc, err := c.NewNear(ctx)
	if err != nil {
		return nscache.Options{}, fmt.Errorf("failed to create near cache: %w", err)
	}
	opts := nscache.Options{
		Namespace:     c.Namespace,
		Dial:          redis.Dialer(c.RedisStore()),
		Retry:         c.RetryPolicy(),
		StickyFailure: c.Retry.Sticky,
		ScanCount:     c.ScanCount,
		NearTTL:       c.Near.TTL.Duration(),
		Near:          nc,
		Logger:        log,
		Hooks:         hooks,
	}
	return opts, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
