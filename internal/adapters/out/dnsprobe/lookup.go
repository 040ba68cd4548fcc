// Package dnsprobe resolves A records against a chosen DNS server.
package dnsprobe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds a single exchange.
const DefaultTimeout = 2 * time.Second

// Lookup implements out.DNSLookup with a plain UDP client.
type Lookup struct {
	client *dns.Client
}

// Option configures the Lookup.
type Option func(*Lookup)

// WithTimeout sets the per-exchange timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(l *Lookup) {
		l.client.Timeout = timeout
	}
}

// WithNet selects the transport ("udp" or "tcp").
func WithNet(network string) Option {
	return func(l *Lookup) {
		l.client.Net = network
	}
}

// New creates a Lookup.
func New(opts ...Option) *Lookup {
	l := &Lookup{
		client: &dns.Client{
			Net:     "udp",
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LookupA queries server for the A records of domain. server may omit the port.
func (l *Lookup) LookupA(ctx context.Context, server, domain string) ([]string, error) {
	addr := server
	if _, _, err := net.SplitHostPort(server); err != nil {
		addr = net.JoinHostPort(server, "53")
	}

	q := new(dns.Msg)
	q.SetQuestion(dns.Fqdn(domain), dns.TypeA)
	q.RecursionDesired = true

	reply, _, err := l.client.ExchangeContext(ctx, q, addr)
	if err != nil {
		return nil, fmt.Errorf("query %s at %s: %w", domain, addr, err)
	}
	if reply.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("query %s at %s: %s", domain, addr, dns.RcodeToString[reply.Rcode])
	}

	answers := make([]string, 0, len(reply.Answer))
	for _, rr := range reply.Answer {
		if a, ok := rr.(*dns.A); ok {
			answers = append(answers, a.A.String())
		}
	}
	return answers, nil
}
