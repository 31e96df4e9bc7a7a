package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	t.Setenv("NSCACHE_CONFIG", "")
	t.Setenv("NSCACHE_REDIS_HOST", mr.Host())
	t.Setenv("NSCACHE_REDIS_PORT", mr.Port())
	t.Setenv("NSCACHE_NAMESPACE", "")
	return mr
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestPing(t *testing.T) {
	setupRedis(t)
	code, out, _ := runCLI(t, "ping")
	assert.Equal(t, 0, code)
	assert.Equal(t, "PONG\n", out)
}

func TestSetGetDel(t *testing.T) {
	mr := setupRedis(t)

	code, _, _ := runCLI(t, "-ttl", "10m", "set", "device:1:reading:1", `{"watts":5}`)
	require.Equal(t, 0, code)
	assert.Equal(t, 10*time.Minute, mr.TTL("deviceservice:device:1:reading:1"))

	code, out, _ := runCLI(t, "get", "device:1:reading:1")
	require.Equal(t, 0, code)
	assert.Equal(t, "{\"watts\":5}\n", out)

	code, out, _ = runCLI(t, "ttl", "device:1:reading:1")
	require.Equal(t, 0, code)
	assert.Equal(t, "10m0s\n", out)

	code, _, _ = runCLI(t, "del", "device:1:reading:1")
	require.Equal(t, 0, code)

	code, _, errOut := runCLI(t, "get", "device:1:reading:1")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")
}

func TestPurge(t *testing.T) {
	mr := setupRedis(t)
	require.NoError(t, mr.Set("deviceservice:device:1:reading:1", "a"))
	require.NoError(t, mr.Set("deviceservice:device:1:reading:2", "b"))
	require.NoError(t, mr.Set("deviceservice:device:2:reading:1", "c"))

	code, out, _ := runCLI(t, "purge", "device:1:*")
	require.Equal(t, 0, code)
	assert.Equal(t, "2 key(s) removed\n", out)
	assert.True(t, mr.Exists("deviceservice:device:2:reading:1"))
}

func TestNamespaceFlag(t *testing.T) {
	mr := setupRedis(t)
	code, _, _ := runCLI(t, "-namespace", "energy:", "set", "k", "v")
	require.Equal(t, 0, code)
	assert.True(t, mr.Exists("energy:k"))

	code, out, _ := runCLI(t, "-namespace", "energy:", "ttl", "k")
	require.Equal(t, 0, code)
	assert.Equal(t, "no expiry\n", out)
}

func TestConfigFile(t *testing.T) {
	mr := setupRedis(t)
	path := filepath.Join(t.TempDir(), "nscache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("namespace: \"file:\"\n"), 0o600))

	code, _, _ := runCLI(t, "-config", path, "set", "k", "v")
	require.Equal(t, 0, code)
	assert.True(t, mr.Exists("file:k"))
}

func TestUsageErrors(t *testing.T) {
	setupRedis(t)

	code, _, errOut := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: nscache")

	code, _, errOut = runCLI(t, "get")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "expected 1 argument(s)")

	code, _, errOut = runCLI(t, "flush")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "flush"`)

	code, _, _ = runCLI(t, "-log-level", "loud", "ping")
	assert.Equal(t, 1, code)
}

func TestUnreachable(t *testing.T) {
	mr := setupRedis(t)
	mr.Close()

	code, _, errOut := runCLI(t, "-attempts", "1", "ping")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "store unreachable after 1 attempt(s)")
}

func TestVersion(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "nscache version")
}
