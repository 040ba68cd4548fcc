// Package render implements the configuration renderer: a pure function from
// a site list to proxy and resolver configuration text.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"strings"
	"text/template"

	"github.com/localroute/localroute/internal/domain"
)

//go:embed templates/*.gotmpl
var templateFS embed.FS

var templates = template.Must(template.New("render").ParseFS(templateFS, "templates/*.gotmpl"))

const (
	proxyTemplate    = "nginx.conf.gotmpl"
	resolverTemplate = "dnsmasq.conf.gotmpl"
)

// Defaults used when no option overrides them.
const (
	DefaultServiceAddress = "172.20.0.2"
	DefaultCacheSize      = 1000
	DefaultProxyCertDir   = "/etc/nginx/ssl"
)

// DefaultUpstreamResolvers are the public fallback resolvers.
var DefaultUpstreamResolvers = []string{"1.1.1.1", "8.8.8.8"}

// Service implements the ConfigRenderer interface.
type Service struct {
	address      string
	upstreams    []string
	cacheSize    int
	proxyCertDir string
}

// Option configures the renderer.
type Option func(*Service)

// WithServiceAddress sets the fixed address overridden domains resolve to.
func WithServiceAddress(addr string) Option {
	return func(s *Service) {
		if addr != "" {
			s.address = addr
		}
	}
}

// WithUpstreamResolvers sets the fallback resolvers for unmatched queries.
func WithUpstreamResolvers(servers []string) Option {
	return func(s *Service) {
		if len(servers) > 0 {
			s.upstreams = append([]string(nil), servers...)
		}
	}
}

// WithCacheSize sets the resolver cache size.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithProxyCertDir sets the certificate directory as seen by the proxy.
func WithProxyCertDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.proxyCertDir = dir
		}
	}
}

// NewService creates a new renderer.
func NewService(opts ...Option) *Service {
	s := &Service{
		address:      DefaultServiceAddress,
		upstreams:    DefaultUpstreamResolvers,
		cacheSize:    DefaultCacheSize,
		proxyCertDir: DefaultProxyCertDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type vhost struct {
	Domain   string
	Target   string
	TLS      bool
	CertPath string
	KeyPath  string
}

// Render produces both configuration files. Output depends only on sites and
// the renderer options, and preserves site order.
func (s *Service) Render(sites domain.SiteList) (domain.RenderedConfig, error) {
	proxy, err := s.renderProxy(sites)
	if err != nil {
		return domain.RenderedConfig{}, err
	}
	resolver, err := s.renderResolver(sites)
	if err != nil {
		return domain.RenderedConfig{}, err
	}
	return domain.RenderedConfig{Proxy: proxy, Resolver: resolver}, nil
}

func (s *Service) renderProxy(sites domain.SiteList) ([]byte, error) {
	vhosts := make([]vhost, 0, sites.Len())
	for _, site := range sites.Sites() {
		vhosts = append(vhosts, vhost{
			Domain:   site.Domain,
			Target:   StripScheme(site.Upstream),
			TLS:      site.TLS,
			CertPath: path.Join(s.proxyCertDir, site.Domain+".crt"),
			KeyPath:  path.Join(s.proxyCertDir, site.Domain+".key"),
		})
	}

	buf := &bytes.Buffer{}
	if err := templates.ExecuteTemplate(buf, proxyTemplate, struct{ VHosts []vhost }{vhosts}); err != nil {
		return nil, fmt.Errorf("failed to render proxy config: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) renderResolver(sites domain.SiteList) ([]byte, error) {
	overrides := make([]string, 0)
	for _, site := range sites.DNSSites() {
		overrides = append(overrides, site.Domain)
	}

	buf := &bytes.Buffer{}
	err := templates.ExecuteTemplate(buf, resolverTemplate, struct {
		Address   string
		Upstreams []string
		CacheSize int
		Overrides []string
	}{
		Address:   s.address,
		Upstreams: s.upstreams,
		CacheSize: s.cacheSize,
		Overrides: overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render resolver config: %w", err)
	}
	return buf.Bytes(), nil
}

// StripScheme removes a leading http:// or https:// and nothing else.
func StripScheme(upstream string) string {
	if rest, ok := strings.CutPrefix(upstream, "https://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(upstream, "http://"); ok {
		return rest
	}
	return upstream
}
