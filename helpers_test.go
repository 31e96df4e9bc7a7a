package nscache

import (
	"context"
	"errors"
	"path"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/nscache/store"
	"github.com/unkn0wn-root/nscache/store/redis"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

// memStore is an in-memory store.Store with fault injection.
type memStore struct {
	mu     sync.Mutex
	m      map[string]memEntry
	closed bool

	delErr  map[string]error // per storage key
	scanErr error            // returned after the first page
	dupScan bool             // repeat every page once
	ttlErr  error
	onDel   func(key string) // runs after a successful delete
}

var _ store.Store = (*memStore)(nil)

func newMemStore() *memStore { return &memStore{m: make(map[string]memEntry)} }

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(s.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.m[key] = memEntry{v: value, exp: exp}
	return nil
}

func (s *memStore) Del(_ context.Context, key string) error {
	s.mu.Lock()
	if err := s.delErr[key]; err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.m, key)
	s.mu.Unlock()
	if s.onDel != nil {
		s.onDel(key)
	}
	return nil
}

func (s *memStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		return false, nil
	}
	e.exp = time.Time{}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	s.m[key] = e
	return true, nil
}

func (s *memStore) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttlErr != nil {
		return 0, false, s.ttlErr
	}
	e, ok := s.m[key]
	if !ok {
		return 0, false, nil
	}
	if e.exp.IsZero() {
		return 0, true, nil
	}
	return time.Until(e.exp), true, nil
}

func (s *memStore) Scan(ctx context.Context, match string, count int64, fn func([]string) error) error {
	s.mu.Lock()
	var all []string
	for k := range s.m {
		if ok, _ := path.Match(match, k); ok {
			all = append(all, k)
		}
	}
	s.mu.Unlock()
	sort.Strings(all)

	if count <= 0 {
		count = 10
	}
	for i := 0; i < len(all); i += int(count) {
		if i > 0 && s.scanErr != nil {
			return s.scanErr
		}
		page := all[i:min(i+int(count), len(all))]
		if err := fn(page); err != nil {
			return err
		}
		if s.dupScan {
			if err := fn(page); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *memStore) Ping(context.Context) error { return nil }

func (s *memStore) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memStore) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[key]
	return ok
}

// recHooks records every event.
type recHooks struct {
	mu        sync.Mutex
	attempts  []int
	delays    []time.Duration
	connected []int
	failed    []int
	decode    []string
	patterns  [][4]any
}

var _ Hooks = (*recHooks)(nil)

func (h *recHooks) ConnectAttemptFailed(attempt int, delay time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, attempt)
	h.delays = append(h.delays, delay)
}

func (h *recHooks) Connected(attempts int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected = append(h.connected, attempts)
}

func (h *recHooks) ConnectFailed(attempts int, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, attempts)
}

func (h *recHooks) DecodeFailed(key string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decode = append(h.decode, key)
}

func (h *recHooks) PatternRemoved(pattern string, matched, deleted, failed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patterns = append(h.patterns, [4]any{pattern, matched, deleted, failed})
}

// recSleep records backoff waits without waiting.
type recSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recSleep) got() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

var errDial = errors.New("dial refused")

// scriptedDial fails the first n calls, then returns s.
type scriptedDial struct {
	mu    sync.Mutex
	fails int
	calls int
	s     store.Store
}

func (d *scriptedDial) dial(context.Context) (store.Store, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.calls <= d.fails {
		return nil, errDial
	}
	return d.s, nil
}

func (d *scriptedDial) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func redisConfig(t *testing.T, mr *miniredis.Miniredis) redis.Config {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return redis.Config{
		Host:         mr.Host(),
		Port:         port,
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   -1,
	}
}

// newRedisClient returns a client on a fresh miniredis. Backoff waits are
// skipped.
func newRedisClient(t *testing.T, mod func(*Options)) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts := Options{}
	if mod != nil {
		mod(&opts)
	}
	if opts.Conn == nil {
		opts.Conn = NewConnManager(redis.Dialer(redisConfig(t, mr)),
			WithSleep(noSleep),
			WithConnHooks(opts.Hooks),
		)
		t.Cleanup(func() { _ = opts.Conn.Close(context.Background()) })
	}
	cl, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close(context.Background()) })
	return cl, mr
}

// newMemClient returns a client backed by a memStore.
func newMemClient(t *testing.T, mod func(*Options)) (*Client, *memStore) {
	t.Helper()
	ms := newMemStore()
	opts := Options{
		Dial: func(context.Context) (store.Store, error) { return ms, nil },
	}
	if mod != nil {
		mod(&opts)
	}
	cl, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close(context.Background()) })
	return cl, ms
}

// mapNear is a deterministic near.Cache.
type mapNear struct {
	mu      sync.Mutex
	m       map[string][]byte
	ttls    map[string]time.Duration
	cleared int
}

func newMapNear() *mapNear {
	return &mapNear{m: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (n *mapNear) Get(key string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.m[key]
	return v, ok
}

func (n *mapNear) Set(key string, value []byte, ttl time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m[key] = value
	n.ttls[key] = ttl
}

func (n *mapNear) Del(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.m, key)
}

func (n *mapNear) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.m = make(map[string][]byte)
	n.cleared++
}

func (n *mapNear) Close() error { return nil }
