package protocol

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// OriginPolicy accepts the host's own origin and an explicit allow-list of
// template deployment origins. Matching is exact on scheme, host and port.
type OriginPolicy struct {
	// normalised origin -> origin as browsers send it
	allowed map[string]string
}

func NewOriginPolicy(self string, allowList ...string) (*OriginPolicy, error) {
	p := &OriginPolicy{allowed: map[string]string{}}
	for _, raw := range append([]string{self}, allowList...) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		key, err := normalizeOrigin(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed origin %q: %w", raw, err)
		}
		u, _ := url.Parse(strings.TrimSpace(raw))
		p.allowed[key] = strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
	}
	if len(p.allowed) == 0 {
		return nil, fmt.Errorf("no allowed origins configured")
	}
	return p, nil
}

func (p *OriginPolicy) Allowed(origin string) bool {
	key, err := normalizeOrigin(origin)
	if err != nil {
		return false
	}
	_, ok := p.allowed[key]
	return ok
}

// Origins lists the allowed origins in the form browsers send them, for CORS.
func (p *OriginPolicy) Origins() []string {
	out := make([]string, 0, len(p.allowed))
	for _, origin := range p.allowed {
		out = append(out, origin)
	}
	sort.Strings(out)
	return out
}

// normalizeOrigin reduces an origin to scheme://host:port with the default
// port filled in. Paths, queries, credentials and the opaque "null" origin
// are rejected.
func normalizeOrigin(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.User != nil || (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("origin must not carry a path, query or credentials")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if scheme == "http" {
			port = "80"
		}
	}
	return scheme + "://" + net.JoinHostPort(host, port), nil
}
