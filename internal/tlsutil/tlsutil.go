// Package tlsutil provides the TLS settings shared by the HTTP server, the
// Redis client and the remote kernel client: TLS 1.2+ with AEAD suites only.
package tlsutil

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

var aeadSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// Hardened returns a fresh hardened client or server base configuration.
func Hardened() *tls.Config {
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		CipherSuites: append([]uint16(nil), aeadSuites...),
	}
}

// ServerConfig loads a certificate pair into a hardened server configuration.
func ServerConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
	}
	cfg := Hardened()
	cfg.Certificates = []tls.Certificate{cert}
	return cfg, nil
}

// RedisConfig returns the client configuration for a TLS Redis endpoint.
func RedisConfig(serverName string) *tls.Config {
	cfg := Hardened()
	cfg.ServerName = serverName
	return cfg
}

// KernelClient returns the HTTP client used to dial remote kernels over wss.
// The timeout bounds the handshake only; the upgraded connection is not
// subject to it.
func KernelClient(handshakeTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: Hardened(),
			DialContext: (&net.Dialer{
				Timeout:   handshakeTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: handshakeTimeout,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
