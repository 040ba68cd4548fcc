// Package httpprober provides HTTP probing through the local proxy.
package httpprober

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"
)

// DefaultTimeout is the default timeout for HTTP probes.
const DefaultTimeout = 5 * time.Second

// Prober implements the HTTPProber interface.
type Prober struct {
	client    *http.Client
	transport *http.Transport
	timeout   time.Duration
}

// Option configures the Prober.
type Option func(*Prober)

// WithTimeout sets the probe timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		p.timeout = timeout
	}
}

// WithHTTPClient sets a custom HTTP client. The client is used as is, so the
// TLS server name is not adjusted per probe.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		p.client = client
	}
}

// New creates a new HTTP prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.transport = &http.Transport{
			// #nosec G402 - locally issued certificates are not trusted by this
			// process; the probe only checks reachability.
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
			DisableKeepAlives: true,
		}
	}

	return p
}

// clientFor returns a client whose TLS handshake presents host as SNI.
func (p *Prober) clientFor(host string) *http.Client {
	if p.client != nil {
		return p.client
	}

	transport := p.transport.Clone()
	transport.TLSClientConfig.ServerName = host

	return &http.Client{
		Timeout:   p.timeout,
		Transport: transport,
		// Don't follow redirects - we want to see the actual response
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Probe sends an HTTP GET to url with the Host header set to host and returns
// the status code and response time.
func (p *Prober) Probe(ctx context.Context, url, host string) (int, int64, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if host != "" {
		req.Host = host
	}

	req.Header.Set("User-Agent", "localroute-verify/1.0")

	resp, err := p.clientFor(host).Do(req)
	if err != nil {
		elapsed := time.Since(start).Milliseconds()
		return 0, elapsed, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Milliseconds()
	return resp.StatusCode, elapsed, nil
}
