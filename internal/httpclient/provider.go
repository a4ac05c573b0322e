package httpclient

import "sync"

// Provider owns the process-wide Client and constructs it on first access.
type Provider struct {
	cfg          Config
	interceptors []Interceptor

	once   sync.Once
	client *Client
}

// NewProvider returns a Provider that will build a Client from cfg with the given interceptors.
func NewProvider(cfg Config, interceptors ...Interceptor) *Provider {
	return &Provider{
		cfg:          cfg,
		interceptors: interceptors,
	}
}

// Client returns the shared client, building it on the first call.
func (p *Provider) Client() *Client {
	p.once.Do(func() {
		p.client = New(p.cfg, p.interceptors...)
	})
	return p.client
}
