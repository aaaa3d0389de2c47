// Package httpclient owns the outbound HTTP clients shared by every
// integration for the lifetime of the process.
package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

const DefaultUserAgent = "dbcv-platform/1.0"

// Config carries no client-wide timeout: every call is bounded by its
// caller's context deadline.
type Config struct {
	Proxies   []string
	UserAgent string
}

// Pool holds one pooled transport, the *http.Client over it and a resty
// client sharing the same connections.
type Pool struct {
	client    *http.Client
	resty     *resty.Client
	transport *http.Transport

	closeOnce sync.Once
	closed    atomic.Bool
}

func New(cfg Config) (*Pool, error) {
	proxies, err := parseProxies(cfg.Proxies)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 16
	if len(proxies) > 0 {
		transport.Proxy = roundRobin(proxies)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	client := &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: userAgent},
	}

	return &Pool{
		client:    client,
		resty:     resty.NewWithClient(client).SetHeader("User-Agent", userAgent),
		transport: transport,
	}, nil
}

// HTTP returns the shared *http.Client.
func (p *Pool) HTTP() *http.Client {
	return p.client
}

// Resty returns the resty client over the shared transport.
func (p *Pool) Resty() *resty.Client {
	return p.resty
}

// Close releases idle connections. It is safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.transport.CloseIdleConnections()
		p.closed.Store(true)
	})
	return nil
}

func (p *Pool) Closed() bool {
	return p.closed.Load()
}

func parseProxies(raw []string) ([]*url.URL, error) {
	proxies := make([]*url.URL, 0, len(raw))
	for _, s := range raw {
		if s == "" {
			continue
		}
		u, err := url.Parse(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", s)
		}
		proxies = append(proxies, u)
	}
	return proxies, nil
}

func roundRobin(proxies []*url.URL) func(*http.Request) (*url.URL, error) {
	var next atomic.Uint64
	return func(*http.Request) (*url.URL, error) {
		n := next.Add(1) - 1
		return proxies[n%uint64(len(proxies))], nil
	}
}

type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
