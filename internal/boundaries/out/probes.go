package out

import "context"

// DNSLookup resolves A records against a specific server.
type DNSLookup interface {
	// LookupA returns the A record answers in the order the server sent them.
	LookupA(ctx context.Context, server, domain string) ([]string, error)
}

// HTTPProber defines the contract for HTTP reachability probing.
type HTTPProber interface {
	// Probe sends a GET to url with the Host header (and TLS server name) set to host.
	// Returns (statusCode, responseTimeMs, error).
	Probe(ctx context.Context, url, host string) (int, int64, error)
}
