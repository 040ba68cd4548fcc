package domain

import "strings"

// Site is one declared routing intent: a local domain forwarded to an upstream.
type Site struct {
	Domain      string
	Upstream    string
	TLS         bool
	DNSOverride bool
}

// SiteList is an immutable, ordered snapshot of validated sites.
// A reload produces a new SiteList; an existing one is never mutated.
type SiteList struct {
	sites []Site
}

// NewSiteList copies sites into a new snapshot.
func NewSiteList(sites []Site) SiteList {
	cp := make([]Site, len(sites))
	copy(cp, sites)
	return SiteList{sites: cp}
}

// Sites returns a copy of the sites in declaration order.
func (l SiteList) Sites() []Site {
	cp := make([]Site, len(l.sites))
	copy(cp, l.sites)
	return cp
}

// Len returns the number of sites.
func (l SiteList) Len() int {
	return len(l.sites)
}

// At returns the site at index i.
func (l SiteList) At(i int) Site {
	return l.sites[i]
}

// TLSSites returns the sites that require TLS termination.
func (l SiteList) TLSSites() []Site {
	var out []Site
	for _, s := range l.sites {
		if s.TLS {
			out = append(out, s)
		}
	}
	return out
}

// DNSSites returns the sites with a DNS override.
func (l SiteList) DNSSites() []Site {
	var out []Site
	for _, s := range l.sites {
		if s.DNSOverride {
			out = append(out, s)
		}
	}
	return out
}

// Domains returns the domain names in declaration order.
func (l SiteList) Domains() []string {
	out := make([]string, 0, len(l.sites))
	for _, s := range l.sites {
		out = append(out, s.Domain)
	}
	return out
}

// NormalizeDomain trims whitespace and a trailing dot and lower-cases the name.
func NormalizeDomain(d string) string {
	d = strings.TrimSpace(d)
	d = strings.TrimSuffix(d, ".")
	return strings.ToLower(d)
}
