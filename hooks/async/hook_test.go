package asynchook

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/nscache"
)

type countHooks struct {
	nscache.NopHooks
	mu     sync.Mutex
	events []string
	block  chan struct{}
}

func (c *countHooks) add(ev string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *countHooks) ConnectAttemptFailed(int, time.Duration, error) { c.add("attempt") }
func (c *countHooks) Connected(int, time.Duration)                   { c.add("connected") }
func (c *countHooks) ConnectFailed(int, error)                       { c.add("failed") }
func (c *countHooks) DecodeFailed(string, error)                     { c.add("decode") }
func (c *countHooks) PatternRemoved(string, int, int, int)           { c.add("pattern") }

func (c *countHooks) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func TestDeliversAllEvents(t *testing.T) {
	inner := &countHooks{}
	h := New(inner, 1, 16)

	h.ConnectAttemptFailed(1, time.Second, errors.New("x"))
	h.Connected(2, time.Second)
	h.ConnectFailed(5, errors.New("x"))
	h.DecodeFailed("k", errors.New("x"))
	h.PatternRemoved("*", 1, 1, 0)
	h.Close()

	assert.Equal(t, []string{"attempt", "connected", "failed", "decode", "pattern"}, inner.got())
	assert.Zero(t, h.Dropped())
}

func TestDropsWhenFull(t *testing.T) {
	inner := &countHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one in the worker, one queued, the rest dropped
	for i := 0; i < 10; i++ {
		h.DecodeFailed("k", nil)
	}
	assert.Eventually(t, func() bool { return h.Dropped() >= 8 }, time.Second, time.Millisecond)
	close(inner.block)
	h.Close()

	assert.Equal(t, uint64(10), h.Dropped()+uint64(len(inner.got())))
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	h := New(nil, 0, 0)
	h.Close()
	h.Close()
	h.Connected(1, 0)
	assert.Equal(t, uint64(1), h.Dropped())
}
