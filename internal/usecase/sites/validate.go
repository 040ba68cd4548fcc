package sites

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/localroute/localroute/internal/domain"
)

const maxHostnameLength = 253

var labelPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// validate checks one entry in order: domain, upstream, flags.
// idx is zero based; errors name the 1-based position when the domain is missing.
func validate(idx int, r rawSite) (domain.Site, error) {
	name, _ := r.fields[keyDomain].(string)
	name = domain.NormalizeDomain(name)
	if name == "" {
		return domain.Site{}, &domain.ValidationError{
			Domain: fmt.Sprintf("site #%d", idx+1),
			Field:  keyDomain,
			Err:    domain.ErrSiteDomainMissing,
		}
	}
	if reason := hostnameProblem(name); reason != "" {
		return domain.Site{}, &domain.ValidationError{
			Domain: name,
			Field:  keyDomain,
			Reason: reason,
			Err:    domain.ErrSiteDomainInvalid,
		}
	}

	upstream, err := validateUpstream(name, r.fields[keyUpstream])
	if err != nil {
		return domain.Site{}, err
	}

	tls, err := flag(name, keyTLS, r)
	if err != nil {
		return domain.Site{}, err
	}
	dns, err := flag(name, keyDNS, r)
	if err != nil {
		return domain.Site{}, err
	}

	return domain.Site{
		Domain:      name,
		Upstream:    upstream,
		TLS:         tls,
		DNSOverride: dns,
	}, nil
}

func validateUpstream(name string, value any) (string, error) {
	if value == nil {
		return "", &domain.ValidationError{Domain: name, Field: keyUpstream, Err: domain.ErrSiteUpstreamMissing}
	}

	s, ok := value.(string)
	if !ok {
		return "", &domain.ValidationError{
			Domain: name,
			Field:  keyUpstream,
			Reason: fmt.Sprintf("expected a string, got %T", value),
			Err:    domain.ErrSiteUpstreamInvalid,
		}
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", &domain.ValidationError{Domain: name, Field: keyUpstream, Err: domain.ErrSiteUpstreamMissing}
	}
	if reason := upstreamProblem(s); reason != "" {
		return "", &domain.ValidationError{
			Domain: name,
			Field:  keyUpstream,
			Reason: fmt.Sprintf("%q must match http(s)://host[:port]: %s", s, reason),
			Err:    domain.ErrSiteUpstreamInvalid,
		}
	}

	return s, nil
}

// hostnameProblem returns why name is not a DNS hostname, or "".
// name is already normalized to lower case.
func hostnameProblem(name string) string {
	if len(name) > maxHostnameLength {
		return fmt.Sprintf("longer than %d characters", maxHostnameLength)
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" {
			return "empty label"
		}
		if !labelPattern.MatchString(label) {
			return fmt.Sprintf("label %q must be 1-63 of a-z, 0-9 or '-', not starting or ending with '-'", label)
		}
	}
	return ""
}

// upstreamProblem returns why raw is not exactly scheme://host[:port], or "".
func upstreamProblem(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "unparseable"
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return "scheme must be http or https"
	case u.Opaque != "":
		return "missing //"
	case u.User != nil:
		return "credentials are not allowed"
	case u.Path != "" || u.RawPath != "":
		return "path is not allowed"
	case u.RawQuery != "" || u.ForceQuery:
		return "query is not allowed"
	case u.Fragment != "" || strings.Contains(raw, "#"):
		return "fragment is not allowed"
	case u.Hostname() == "":
		return "host is missing"
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip == nil {
		if strings.Contains(u.Host, "[") {
			return "invalid IPv6 address"
		}
		if reason := hostnameProblem(strings.ToLower(host)); reason != "" {
			return "host " + reason
		}
	}

	if strings.HasSuffix(u.Host, ":") {
		return "empty port"
	}
	if port := u.Port(); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 {
			return "port must be 1-65535"
		}
	}
	return ""
}

// flag decodes a boolean flag. The legacy encoding defaults a missing flag to
// false; the document encoding requires it.
func flag(name, key string, r rawSite) (bool, error) {
	value, present := r.fields[key]
	if !present {
		if r.legacy {
			return false, nil
		}
		return false, &domain.ValidationError{Domain: name, Field: key, Reason: "is required", Err: domain.ErrSiteFlagInvalid}
	}

	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		if r.legacy {
			switch v {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
	}

	return false, &domain.ValidationError{
		Domain: name,
		Field:  key,
		Reason: fmt.Sprintf("expected true or false, got %v", value),
		Err:    domain.ErrSiteFlagInvalid,
	}
}
