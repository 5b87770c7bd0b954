package tlsutil

import (
	"crypto/tls"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertAEADOnly(t *testing.T, cfg *tls.Config) {
	t.Helper()
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	require.NotEmpty(t, cfg.CipherSuites)
	for _, cs := range cfg.CipherSuites {
		assert.Contains(t, aeadSuites, cs)
	}
}

func TestHardened(t *testing.T) {
	a, b := Hardened(), Hardened()
	assertAEADOnly(t, a)
	a.CipherSuites[0] = 0
	assert.NotEqual(t, uint16(0), b.CipherSuites[0], "each call returns an independent copy")
}

func TestRedisConfig(t *testing.T) {
	cfg := RedisConfig("redis.internal")
	assertAEADOnly(t, cfg)
	assert.Equal(t, "redis.internal", cfg.ServerName)
}

func TestServerConfig_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	_, err := ServerConfig(filepath.Join(dir, "cert.pem"), filepath.Join(dir, "key.pem"))
	require.Error(t, err)
}

func TestKernelClient(t *testing.T) {
	c := KernelClient(5 * time.Second)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assertAEADOnly(t, tr.TLSClientConfig)
	assert.Equal(t, 5*time.Second, tr.TLSHandshakeTimeout)
	assert.Zero(t, c.Timeout)
}
