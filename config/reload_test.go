package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDiff(t *testing.T) {
	a, b := DefaultConfig(), DefaultConfig()
	assert.Empty(t, Diff(a, b))

	b.Trace.MaxItems = 10
	b.Log.Level = "debug"
	b.Auth.APIKeys = []string{"x"}
	assert.ElementsMatch(t, []string{"Trace.MaxItems", "Log.Level", "Auth.APIKeys"}, Diff(a, b))
}

func TestIsHotReloadable(t *testing.T) {
	assert.True(t, IsHotReloadable("Log.Level"))
	assert.True(t, IsHotReloadable("Trace.MaxItems"))
	assert.False(t, IsHotReloadable("Server.HTTPPort"))
}

func TestReloader_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trace:\n  max_items: 100\n"), 0o600))

	loader := NewLoader().WithConfigPath(path).WithValidator((*Config).Validate)
	cfg, err := loader.Load()
	require.NoError(t, err)

	r := NewReloader(cfg, loader, zaptest.NewLogger(t))
	var seen atomic.Int64
	r.OnReload(func(_, next *Config) { seen.Store(int64(next.Trace.MaxItems)) })

	changed, err := r.Reload()
	require.NoError(t, err)
	assert.Empty(t, changed, "unchanged file triggers nothing")

	require.NoError(t, os.WriteFile(path, []byte("trace:\n  max_items: 7\n"), 0o600))
	changed, err = r.Reload()
	require.NoError(t, err)
	assert.Equal(t, []string{"Trace.MaxItems"}, changed)
	assert.Equal(t, int64(7), seen.Load())
	assert.Equal(t, 7, r.Current().Trace.MaxItems)

	require.NoError(t, os.WriteFile(path, []byte("trace:\n  max_items: -1\n"), 0o600))
	_, err = r.Reload()
	require.Error(t, err)
	assert.Equal(t, 7, r.Current().Trace.MaxItems, "invalid config keeps the current one")
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o600))

	w := NewWatcher(path, 10*time.Millisecond, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan struct{}, 4)
	go w.Run(ctx, func() { changes <- struct{}{} })

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("change not detected")
	}
}
