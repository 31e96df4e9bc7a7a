package ristretto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(Config{NumCounters: 1000, MaxCost: 1 << 20})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestInvalidConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSetGetDel(t *testing.T) {
	c := newTestCache(t)
	c.Set("deviceservice:device:1", []byte("v1"), time.Minute)
	c.Wait()

	got, ok := c.Get("deviceservice:device:1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	c.Del("deviceservice:device:1")
	_, ok = c.Get("deviceservice:device:1")
	assert.False(t, ok)
}

func TestNonPositiveTTLIsNotStored(t *testing.T) {
	c := newTestCache(t)
	c.Set("k", []byte("v"), 0)
	c.Wait()
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	c := newTestCache(t)
	c.Set("a", []byte("1"), time.Minute)
	c.Wait()
	c.Clear()
	_, ok := c.Get("a")
	assert.False(t, ok)
}
