package sites

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/localroute/localroute/internal/domain"
)

// Site entry keys shared by both encodings.
const (
	keyDomain   = "network_domain"
	keyUpstream = "real_host"
	keyTLS      = "force_ssl"
	keyDNS      = "force_dns"
)

var defineLine = regexp.MustCompile(`^define\s*\{`)

// rawSite is one undecoded entry before validation.
type rawSite struct {
	fields map[string]any
	legacy bool
}

// isLegacy reports whether raw uses the `define { ... }` block encoding.
func isLegacy(raw []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		if defineLine.MatchString(strings.TrimSpace(scanner.Text())) {
			return true
		}
	}
	return false
}

// parseLegacy reads repeated `define { key: value }` blocks.
// Values are split on the first colon so upstream URLs survive intact.
func parseLegacy(raw []byte) ([]rawSite, error) {
	var (
		out     []rawSite
		current map[string]any
		lineNo  int
	)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case defineLine.MatchString(line):
			if current != nil {
				return nil, fmt.Errorf("%w: line %d: nested define block", domain.ErrSiteListInvalid, lineNo)
			}
			current = map[string]any{}
		case line == "}":
			if current == nil {
				return nil, fmt.Errorf("%w: line %d: unexpected closing brace", domain.ErrSiteListInvalid, lineNo)
			}
			out = append(out, rawSite{fields: current, legacy: true})
			current = nil
		case current != nil:
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.NewReplacer(`"`, "", ",", "").Replace(strings.TrimSpace(value))
			value = strings.TrimSpace(value)
			if key != "" && value != "" {
				current[key] = value
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSiteListInvalid, err)
	}
	if current != nil {
		return nil, fmt.Errorf("%w: unterminated define block", domain.ErrSiteListInvalid)
	}

	return out, nil
}

// parseDocument reads a YAML or JSON document with a top-level sites list.
func parseDocument(raw []byte) ([]rawSite, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSiteListInvalid, err)
	}

	value, ok := doc["sites"]
	if !ok {
		return nil, fmt.Errorf("%w: missing top-level sites list", domain.ErrSiteListInvalid)
	}
	if value == nil {
		return nil, nil
	}

	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: sites must be a list", domain.ErrSiteListInvalid)
	}

	out := make([]rawSite, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: site #%d is not an object", domain.ErrSiteListInvalid, i+1)
		}
		out = append(out, rawSite{fields: fields})
	}

	return out, nil
}
