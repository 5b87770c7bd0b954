package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/blockflow/config"
	"github.com/BaSui01/blockflow/internal/metrics"
	"github.com/BaSui01/blockflow/testutil"
	"github.com/BaSui01/blockflow/testutil/fixtures"
)

// The collector registers with the default Prometheus registry, so the
// package shares one.
var (
	collectorOnce sync.Once
	collector     *metrics.Collector
)

func testCollector() *metrics.Collector {
	collectorOnce.Do(func() { collector = metrics.NewCollector("blockflow_test", nil) })
	return collector
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.MetricsPort = 0
	if mutate != nil {
		mutate(cfg)
	}
	s, err := NewServer(testutil.TestContext(t), cfg, zaptest.NewLogger(t), testCollector())
	require.NoError(t, err)
	t.Cleanup(func() { s.closeResources(context.Background()) })
	return s
}

func call(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.RemoteAddr = "192.0.2.1:4000"
	for i := 0; i+1 < len(header); i += 2 {
		r.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, nil)
	h := s.handler

	w := call(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/metrics", "").Code)

	w = call(t, h, http.MethodPut, "/api/v1/workflows/counter", testutil.MustJSON(fixtures.CountingLoop()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(t, h, http.MethodPost, "/api/v1/sessions", `{"workflow_id":"counter"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := testutil.DecodeData[struct {
		ID string `json:"id"`
	}](t, w.Body.Bytes())
	require.NotEmpty(t, created.ID)

	w = call(t, h, http.MethodPost, "/api/v1/sessions/"+created.ID+"/run", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"run_id"`)

	w = call(t, h, http.MethodGet, "/api/v1/workflows/counter/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"SUCCEEDED"`)

	assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodGet, "/api/v1/kernel", "").Code, "kernel endpoint is opt-in")
}

func TestServer_KernelEndpoint(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.ExposeKernel = true })
	w := call(t, s.handler, http.MethodGet, "/api/v1/kernel", "")
	assert.NotEqual(t, http.StatusNotFound, w.Code, "plain GET reaches the handler and fails the upgrade")
}

func TestServer_Auth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Auth.APIKeys = []string{"secret"} })
	h := s.handler

	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, call(t, h, http.MethodGet, "/api/v1/sessions", "").Code)
	assert.Equal(t, http.StatusOK, call(t, h, http.MethodGet, "/api/v1/sessions", "", "X-API-Key", "secret").Code)
}

func TestServer_RateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.RateLimit = config.RateLimitConfig{RPS: 1, Burst: 1} })

	assert.Equal(t, http.StatusOK, call(t, s.handler, http.MethodGet, "/version", "").Code)
	w := call(t, s.handler, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"RATE_LIMITED"`)
}

func TestServer_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blockflow.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write("log:\n  level: info\nrate_limit:\n  rps: 1\n  burst: 1\n")

	cfg, loader, err := loadConfig(path)
	require.NoError(t, err)
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	s, err := NewServer(testutil.TestContext(t), cfg, zap.NewNop(), testCollector())
	require.NoError(t, err)
	t.Cleanup(func() { s.closeResources(context.Background()) })
	s.EnableHotReload(path, loader, level)

	write("log:\n  level: debug\nrate_limit:\n  rps: 100\n  burst: 50\ntrace:\n  max_items: 12\n")
	changed, err := s.reloader.Reload()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Log.Level", "RateLimit.RPS", "RateLimit.Burst", "Trace.MaxItems"}, changed)

	assert.Equal(t, zapcore.DebugLevel, level.Level())
	assert.Equal(t, 12, s.builder.MaxItems())
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, call(t, s.handler, http.MethodGet, "/version", "").Code)
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Server.HTTPPort = 0
		c.Server.ShutdownTimeout = time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServer_BadInterpreter(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Interpreter.Kind = "remote"
	_, err := NewServer(testutil.TestContext(t), cfg, zap.NewNop(), testCollector())
	assert.ErrorContains(t, err, "requires a URL")
}
