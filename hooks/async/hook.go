// Package asynchook moves Hooks delivery off the caller's goroutine.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{AttemptEvery: 1})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cl, _ := nscache.New(nscache.Options{
//	    Dial:  redis.Dialer(redis.Config{Host: "localhost"}),
//	    Hooks: hooks,
//	})
//
// Events are dropped, never blocked on, when the queue is full.
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/nscache"
)

type Hooks struct {
	inner   nscache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards sends against close
	closed  bool
	dropped atomic.Uint64
}

var _ nscache.Hooks = (*Hooks)(nil)

func New(inner nscache.Hooks, workers, qlen int) *Hooks {
	if inner == nil {
		inner = nscache.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) ConnectAttemptFailed(attempt int, delay time.Duration, err error) {
	h.try(func() { h.inner.ConnectAttemptFailed(attempt, delay, err) })
}

func (h *Hooks) Connected(attempts int, elapsed time.Duration) {
	h.try(func() { h.inner.Connected(attempts, elapsed) })
}

func (h *Hooks) ConnectFailed(attempts int, err error) {
	h.try(func() { h.inner.ConnectFailed(attempts, err) })
}

func (h *Hooks) DecodeFailed(key string, err error) {
	h.try(func() { h.inner.DecodeFailed(key, err) })
}

func (h *Hooks) PatternRemoved(pattern string, matched, deleted, failed int) {
	h.try(func() { h.inner.PatternRemoved(pattern, matched, deleted, failed) })
}
