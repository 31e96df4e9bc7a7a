package nscache

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/nscache/store"
)

// State is the lifecycle of the shared handle owned by a ConnManager.
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds connection establishment. It is never applied to
// individual cache operations.
type RetryPolicy struct {
	MaxAttempts int           // 0 => 5
	BaseDelay   time.Duration // 0 => 1s
	MaxDelay    time.Duration // 0 => uncapped
}

// Delay returns the wait after failed attempt n (1-based): BaseDelay * 2^n.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := coalesce(p.BaseDelay, DefaultBaseDelay)
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		attempt = 32
	}
	d := base << attempt
	if d>>attempt != base || d <= 0 { // overflow
		d = time.Duration(math.MaxInt64)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return p.MaxAttempts
}

type ConnOption func(*ConnManager)

func WithRetryPolicy(p RetryPolicy) ConnOption {
	return func(m *ConnManager) { m.policy = p }
}

func WithConnLogger(l Logger) ConnOption {
	return func(m *ConnManager) {
		if l != nil {
			m.log = l
		}
	}
}

func WithConnHooks(h Hooks) ConnOption {
	return func(m *ConnManager) {
		if h != nil {
			m.hooks = h
		}
	}
}

// WithStickyFailure keeps the manager failed for its whole lifetime once the
// retry budget is exhausted. By default the next call starts a fresh cycle.
func WithStickyFailure() ConnOption {
	return func(m *ConnManager) { m.sticky = true }
}

// WithSleep replaces the backoff wait. The function must return early with
// ctx.Err() when ctx is done.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) ConnOption {
	return func(m *ConnManager) {
		if fn != nil {
			m.sleep = fn
		}
	}
}

const connectKey = "connect"

// ConnManager owns one lazily established store handle. Concurrent first
// callers share a single in-flight initialization and all observe its
// outcome; once ready, the handle is returned without synchronization beyond
// a short mutex read.
type ConnManager struct {
	dial   store.DialFunc
	policy RetryPolicy
	log    Logger
	hooks  Hooks
	sleep  func(context.Context, time.Duration) error
	sticky bool

	// lifetime context for initialization; cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	group singleflight.Group

	mu      sync.Mutex
	state   State
	handle  store.Store
	lastErr error
	closed  bool
}

func NewConnManager(dial store.DialFunc, opts ...ConnOption) *ConnManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &ConnManager{
		dial:   dial,
		log:    NopLogger{},
		hooks:  NopHooks{},
		sleep:  sleepCtx,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the live handle, connecting on first use. A caller whose ctx
// ends while waiting returns immediately; the shared initialization keeps
// running for the others.
func (m *ConnManager) Get(ctx context.Context) (store.Store, error) {
	if h, ok, err := m.current(); ok {
		return h, err
	}
	ch := m.group.DoChan(connectKey, m.initialize)
	select {
	case <-ctx.Done():
		return nil, &ConnectionError{Err: ctx.Err()}
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(store.Store), nil
	}
}

// State reports the current lifecycle state.
func (m *ConnManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Invalidate drops the current handle so that the next Get reconnects.
// An initialization already in flight is not affected.
func (m *ConnManager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.lastErr = nil
	if m.state != StateConnecting {
		m.state = StateUninitialized
	}
	m.mu.Unlock()

	if h != nil {
		m.log.Info("store handle invalidated", nil)
		return h.Close(ctx)
	}
	return nil
}

// Close aborts any pending backoff and closes the handle. Later calls to Get
// fail with ErrClosed. Safe to call multiple times.
func (m *ConnManager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	h := m.handle
	m.handle = nil
	m.mu.Unlock()

	m.cancel()
	if h != nil {
		return h.Close(ctx)
	}
	return nil
}

// current returns a settled outcome if there is one.
func (m *ConnManager) current() (store.Store, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return nil, true, &ConnectionError{Err: ErrClosed}
	case m.state == StateReady:
		return m.handle, true, nil
	case m.state == StateFailed && m.sticky:
		return nil, true, m.lastErr
	}
	return nil, false, nil
}

func (m *ConnManager) initialize() (any, error) {
	// a caller may have raced past current() while the previous flight
	// was completing
	if h, ok, err := m.current(); ok {
		if err != nil {
			return nil, err
		}
		return h, nil
	}

	m.mu.Lock()
	m.state = StateConnecting
	m.mu.Unlock()

	start := time.Now()
	budget := m.policy.attempts()
	var last error
	attempt := 1
	for ; attempt <= budget; attempt++ {
		h, err := m.dial(m.ctx)
		if err == nil {
			return m.ready(h, attempt, time.Since(start))
		}
		last = err

		var delay time.Duration
		if attempt < budget {
			delay = m.policy.Delay(attempt)
		}
		m.log.Warn("store connect attempt failed", Fields{
			"attempt":      attempt,
			"max_attempts": budget,
			"delay":        delay,
			"err":          err,
		})
		m.hooks.ConnectAttemptFailed(attempt, delay, err)

		if delay > 0 {
			if serr := m.sleep(m.ctx, delay); serr != nil {
				last = ErrClosed
				break
			}
		}
	}
	if attempt > budget {
		attempt = budget
	}
	return nil, m.fail(attempt, last)
}

func (m *ConnManager) ready(h store.Store, attempts int, elapsed time.Duration) (any, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = h.Close(context.Background())
		return nil, &ConnectionError{Attempts: attempts, Err: ErrClosed}
	}
	m.state, m.handle, m.lastErr = StateReady, h, nil
	m.mu.Unlock()

	m.log.Info("store connected", Fields{"attempts": attempts, "elapsed": elapsed})
	m.hooks.Connected(attempts, elapsed)
	return h, nil
}

func (m *ConnManager) fail(attempts int, last error) error {
	cerr := &ConnectionError{Attempts: attempts, Err: last}
	m.mu.Lock()
	m.state, m.lastErr = StateFailed, cerr
	m.mu.Unlock()

	m.log.Error("store connect failed", Fields{"attempts": attempts, "err": last})
	m.hooks.ConnectFailed(attempts, last)
	return cerr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
