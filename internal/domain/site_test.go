package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already normalized", input: "app.local", expected: "app.local"},
		{name: "upper case", input: "App.LOCAL", expected: "app.local"},
		{name: "surrounding whitespace", input: "  app.local\t", expected: "app.local"},
		{name: "trailing dot", input: "app.local.", expected: "app.local"},
		{name: "empty", input: "   ", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeDomain(tt.input))
		})
	}
}

func TestSiteList_IsImmutable(t *testing.T) {
	src := []Site{{Domain: "a.local", Upstream: "http://localhost:3000"}}
	list := NewSiteList(src)

	src[0].Domain = "mutated.local"
	assert.Equal(t, "a.local", list.At(0).Domain)

	out := list.Sites()
	out[0].Domain = "mutated.local"
	assert.Equal(t, "a.local", list.At(0).Domain)
}

func TestSiteList_Filters(t *testing.T) {
	list := NewSiteList([]Site{
		{Domain: "a.local", Upstream: "http://localhost:3000", TLS: true},
		{Domain: "b.local", Upstream: "http://localhost:3001", DNSOverride: true},
		{Domain: "c.local", Upstream: "http://localhost:3002", TLS: true, DNSOverride: true},
	})

	assert.Equal(t, 3, list.Len())
	assert.Equal(t, []string{"a.local", "b.local", "c.local"}, list.Domains())

	var tls []string
	for _, s := range list.TLSSites() {
		tls = append(tls, s.Domain)
	}
	assert.Equal(t, []string{"a.local", "c.local"}, tls)

	var dns []string
	for _, s := range list.DNSSites() {
		dns = append(dns, s.Domain)
	}
	assert.Equal(t, []string{"b.local", "c.local"}, dns)
}

func TestVerificationReport_Failed(t *testing.T) {
	report := VerificationReport{Checks: []SiteCheck{
		{Domain: "ok.local", HTTP: HTTPCheck{Passed: true}},
		{Domain: "dns.local", DNS: &DNSCheck{Passed: false}, HTTP: HTTPCheck{Passed: true}},
		{Domain: "http.local", HTTP: HTTPCheck{Passed: false}},
	}}

	failed := report.Failed()
	assert.Len(t, failed, 2)
	assert.Equal(t, "dns.local", failed[0].Domain)
	assert.Equal(t, "http.local", failed[1].Domain)
	assert.False(t, report.Passed())
}
