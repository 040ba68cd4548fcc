package lifecycle

import (
	"github.com/localroute/localroute/internal/domain"
)

// Service container names.
const (
	ProxyName = "localroute-proxy"
	DNSName   = "localroute-dns"
)

// SpecOptions carries the host paths and images used to build service specs.
// Host paths must be absolute because they become bind mounts.
type SpecOptions struct {
	NetworkName  string
	Subnet       string
	Gateway      string
	ProxyAddress string
	DNSAddress   string
	ProxyImage   string
	DNSImage     string

	ProxyConfPath    string
	ResolverConfPath string
	CertDir          string
	ProxyCertDir     string // certificate directory inside the proxy container

	DNSBindAddress string // host address the DNS port is published on
}

// BuildSpecs returns the shared network and the services in start order.
func BuildSpecs(o SpecOptions) (domain.NetworkSpec, []domain.ServiceSpec) {
	network := domain.NetworkSpec{
		Name:    o.NetworkName,
		Subnet:  o.Subnet,
		Gateway: o.Gateway,
	}

	proxy := domain.ServiceSpec{
		Name:    ProxyName,
		Image:   o.ProxyImage,
		IPv4:    o.ProxyAddress,
		Network: o.NetworkName,
		Ports: []domain.PortBinding{
			{HostPort: "80", ContainerPort: "80", Protocol: "tcp"},
			{HostPort: "443", ContainerPort: "443", Protocol: "tcp"},
		},
		Mounts: []domain.Mount{
			{Source: o.ProxyConfPath, Target: "/etc/nginx/nginx.conf", ReadOnly: true},
			{Source: o.CertDir, Target: o.ProxyCertDir, ReadOnly: true},
		},
	}

	dns := domain.ServiceSpec{
		Name:    DNSName,
		Image:   o.DNSImage,
		IPv4:    o.DNSAddress,
		Network: o.NetworkName,
		Ports: []domain.PortBinding{
			{HostIP: o.DNSBindAddress, HostPort: "53", ContainerPort: "53", Protocol: "udp"},
			{HostIP: o.DNSBindAddress, HostPort: "53", ContainerPort: "53", Protocol: "tcp"},
		},
		Mounts: []domain.Mount{
			{Source: o.ResolverConfPath, Target: "/etc/dnsmasq.conf", ReadOnly: true},
		},
		CapAdd: []string{"NET_ADMIN"},
	}

	return network, []domain.ServiceSpec{dns, proxy}
}
