package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/nscache/store"
)

var ErrNilClient = errors.New("redis store: nil client")

const (
	DefaultPort    = 6379
	DefaultTimeout = 5 * time.Second
)

// Config describes how to reach a standalone Redis server.
type Config struct {
	Host     string
	Port     int // 0 => 6379
	Username string
	Password string
	DB       int

	DialTimeout  time.Duration // 0 => 5s
	ReadTimeout  time.Duration // 0 => 5s
	WriteTimeout time.Duration // 0 => 5s
	PoolSize     int           // 0 => go-redis default
	MaxRetries   int           // per command; 0 => go-redis default, -1 disables

	TLS *tls.Config // nil => plaintext
}

// Addr returns host:port with defaults applied.
func (c Config) Addr() string {
	port := c.Port
	if port <= 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c Config) options() *goredis.Options {
	return &goredis.Options{
		Addr:         c.Addr(),
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  orDefault(c.DialTimeout),
		ReadTimeout:  orDefault(c.ReadTimeout),
		WriteTimeout: orDefault(c.WriteTimeout),
		PoolSize:     c.PoolSize,
		MaxRetries:   c.MaxRetries,
		TLSConfig:    c.TLS,
	}
}

func orDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Redis implements store.Store on a go-redis client.
type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ store.Store = (*Redis)(nil)

// Dial creates a client for cfg and verifies it with PING. The client is
// closed again if the server does not answer.
func Dial(ctx context.Context, cfg Config) (*Redis, error) {
	rdb := goredis.NewClient(cfg.options())
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Redis{rdb: rdb, closeClient: true}, nil
}

// Dialer adapts Dial to store.DialFunc for the connection manager.
func Dialer(cfg Config) store.DialFunc {
	return func(ctx context.Context) (store.Store, error) {
		s, err := Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// New wraps an existing client. Set closeClient only if the store
// exclusively owns the client.
func New(client goredis.UniversalClient, closeClient bool) (*Redis, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: client, closeClient: closeClient}, nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // go-redis: 0 => no expiry
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *Redis) Del(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *Redis) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// PERSIST clears an expiry; it reports false for keys without one, so
		// existence is checked separately.
		n, err := s.rdb.Exists(ctx, key).Result()
		if err != nil || n == 0 {
			return false, err
		}
		return true, s.rdb.Persist(ctx, key).Err()
	}
	return s.rdb.PExpire(ctx, key, ttl).Result()
}

func (s *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	// go-redis passes the -2 (missing) and -1 (no expiry) replies through
	// unscaled.
	switch d {
	case -2:
		return 0, false, nil
	case -1:
		return 0, true, nil
	}
	return d, true, nil
}

func (s *Redis) Scan(ctx context.Context, match string, count int64, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, match, count).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying redis client only when this store owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (s *Redis) Close(context.Context) error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
