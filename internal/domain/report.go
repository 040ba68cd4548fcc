package domain

import "time"

// DNSCheck is the outcome of resolving one overridden domain.
type DNSCheck struct {
	Expected string
	Answer   string
	Passed   bool
	TimedOut bool
	Err      string
}

// HTTPCheck is the outcome of one HTTP(S) probe through the proxy.
type HTTPCheck struct {
	URL       string
	Host      string
	Status    int
	ElapsedMs int64
	Passed    bool
	TimedOut  bool
	Err       string
}

// SiteCheck aggregates the checks for one site.
// DNS is nil when the site has no DNS override.
type SiteCheck struct {
	Domain string
	DNS    *DNSCheck
	HTTP   HTTPCheck
}

// Passed reports whether every check for the site passed.
func (c SiteCheck) Passed() bool {
	if c.DNS != nil && !c.DNS.Passed {
		return false
	}
	return c.HTTP.Passed
}

// VerificationReport holds one SiteCheck per site, in site order.
type VerificationReport struct {
	Checks   []SiteCheck
	Duration time.Duration
}

// Failed returns the checks that did not pass.
func (r VerificationReport) Failed() []SiteCheck {
	var out []SiteCheck
	for _, c := range r.Checks {
		if !c.Passed() {
			out = append(out, c)
		}
	}
	return out
}

// Passed reports whether every site passed.
func (r VerificationReport) Passed() bool {
	return len(r.Failed()) == 0
}
