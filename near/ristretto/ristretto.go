package ristretto

import (
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/nscache/near"
)

// Cache is a near.Cache backed by ristretto. Admission is probabilistic, so a
// Set may be dropped under pressure; that is a miss, never an error.
type Cache struct {
	c *rc.Cache
}

var _ near.Cache = (*Cache)(nil)

type Config struct {
	NumCounters int64 // ~10x expected item count
	MaxCost     int64 // total bytes when cost is the value length
	BufferItems int64 // 0 => 64
	Metrics     bool
}

func New(cfg Config) (*Cache, error) {
	if cfg.BufferItems <= 0 {
		cfg.BufferItems = 64
	}
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

func (n *Cache) Get(key string) ([]byte, bool) {
	v, ok := n.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		n.c.Del(key)
		return nil, false
	}
	return b, true
}

// Set costs each entry by its size, so MaxCost bounds memory in bytes.
func (n *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	n.c.SetWithTTL(key, value, int64(len(value))+int64(len(key)), ttl)
}

func (n *Cache) Del(key string) { n.c.Del(key) }

func (n *Cache) Clear() { n.c.Clear() }

// Wait blocks until buffered writes are applied. Useful in tests.
func (n *Cache) Wait() { n.c.Wait() }

func (n *Cache) Close() error {
	n.c.Close()
	return nil
}

// Metrics exposes ristretto counters when Config.Metrics is set.
func (n *Cache) Metrics() *rc.Metrics { return n.c.Metrics }
