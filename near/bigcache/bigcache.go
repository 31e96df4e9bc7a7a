package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/nscache/internal/wire"
	"github.com/unkn0wn-root/nscache/near"
)

// Cache is a near.Cache backed by BigCache. BigCache only knows a global
// LifeWindow, so each entry is framed with its own expiry and checked on
// read; LifeWindow then acts as an upper bound.
type Cache struct {
	c   *bc.BigCache
	now func() time.Time
}

var _ near.Cache = (*Cache)(nil)

type Config struct {
	LifeWindow         time.Duration // 0 => 1m
	CleanWindow        time.Duration
	Shards             int // power of two; 0 => bigcache default
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.LifeWindow <= 0 {
		cfg.LifeWindow = time.Minute
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	conf.Verbose = false
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, now: time.Now}, nil
}

func (n *Cache) Get(key string) ([]byte, bool) {
	b, err := n.c.Get(key)
	if err != nil {
		return nil, false
	}
	exp, payload, err := wire.DecodeEntry(b)
	if err != nil || !n.now().Before(exp) {
		_ = n.c.Delete(key)
		return nil, false
	}
	return payload, true
}

func (n *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	_ = n.c.Set(key, wire.EncodeEntry(n.now().Add(ttl), value))
}

func (n *Cache) Del(key string) { _ = n.c.Delete(key) }

func (n *Cache) Clear() { _ = n.c.Reset() }

func (n *Cache) Close() error { return n.c.Close() }
