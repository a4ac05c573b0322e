package httpclient

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Config sizes and times the shared client's transport.
type Config struct {
	// Timeout bounds a whole exchange, redirects and body included.
	// A shorter context deadline still wins.
	Timeout time.Duration

	DialTimeout     time.Duration
	KeepAlive       time.Duration
	TLSHandshake    time.Duration
	ResponseHeader  time.Duration
	ExpectContinue  time.Duration
	IdleConnTimeout time.Duration

	// Idle pool limits. Most traffic goes to a single server, so the per-host
	// limit matters more than the total.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
}

// DefaultConfig returns the transport settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Second,
		DialTimeout:         5 * time.Second,
		KeepAlive:           30 * time.Second,
		TLSHandshake:        5 * time.Second,
		ResponseHeader:      10 * time.Second,
		ExpectContinue:      time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 8,
	}
}

// NewTransport builds the network-facing transport from cfg.
func NewTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: cfg.KeepAlive,
	}

	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dialer.DialContext,

		ForceAttemptHTTP2: true,

		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,

		TLSHandshakeTimeout:   cfg.TLSHandshake,
		ResponseHeaderTimeout: cfg.ResponseHeader,
		ExpectContinueTimeout: cfg.ExpectContinue,
	}
}

// Client is an HTTP client with an ordered list of network interceptors.
// The chain is assembled on every request, so interceptors added after
// construction apply to all later requests.
type Client struct {
	mu           sync.RWMutex
	base         http.RoundTripper
	interceptors []Interceptor
	http         *http.Client
}

// New creates a Client over a transport built from cfg.
func New(cfg Config, interceptors ...Interceptor) *Client {
	return NewWithTransport(NewTransport(cfg), cfg.Timeout, interceptors...)
}

// NewWithTransport creates a Client whose innermost round tripper is base.
func NewWithTransport(base http.RoundTripper, timeout time.Duration, interceptors ...Interceptor) *Client {
	c := &Client{
		base:         base,
		interceptors: append([]Interceptor(nil), interceptors...),
	}
	c.http = &http.Client{
		Transport: RoundTripperFunc(c.roundTrip),
		Timeout:   timeout,
	}
	return c
}

// HTTP returns the *http.Client that runs requests through the interceptor chain.
func (c *Client) HTTP() *http.Client {
	return c.http
}

// AddNetworkInterceptor appends i after every interceptor already configured.
func (c *Client) AddNetworkInterceptor(i Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
}

// NetworkInterceptors returns a copy of the interceptor list in order.
func (c *Client) NetworkInterceptors() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Interceptor(nil), c.interceptors...)
}

func (c *Client) roundTrip(req *http.Request) (*http.Response, error) {
	return Chain(c.base, c.NetworkInterceptors()...).RoundTrip(req)
}
