package httpclient

import (
	"net"
	"net/http"
	"time"
)

// Config holds HTTP client configuration.
type Config struct {
	Timeout         time.Duration
	MaxConnsPerHost int
}

// DefaultConfig returns defaults suited to a payment API client.
func DefaultConfig() Config {
	return Config{
		Timeout:         20 * time.Second,
		MaxConnsPerHost: 50,
	}
}

// New builds an *http.Client with pooled connections and bounded dial, TLS
// and overall timeouts. It never retries: outbound payment calls are not
// idempotent unless the caller supplies a key, so retry policy stays with
// the caller.
func New(cfg Config) *http.Client {
	if cfg.MaxConnsPerHost <= 0 {
		cfg.MaxConnsPerHost = DefaultConfig().MaxConnsPerHost
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
