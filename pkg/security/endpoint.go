// Package security holds the guards applied to outbound API tool traffic:
// endpoint validation, credential checks and per-tool rate limits.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// EndpointPolicy configures which tool endpoints are acceptable
type EndpointPolicy struct {
	// AllowedSchemes is the list of allowed URL schemes (default: http, https)
	AllowedSchemes []string
	// AllowedHosts restricts endpoints to these hostnames when non-empty
	AllowedHosts []string
	// BlockMetadata rejects cloud metadata addresses such as 169.254.169.254
	BlockMetadata bool
	// BlockPrivateIPs rejects literal RFC1918 addresses
	BlockPrivateIPs bool
}

// DefaultEndpointPolicy returns the policy used when none is configured.
// Loopback stays reachable so local mocks and proxies work.
func DefaultEndpointPolicy() EndpointPolicy {
	return EndpointPolicy{
		AllowedSchemes: []string{"http", "https"},
		BlockMetadata:  true,
	}
}

// ValidateEndpoint parses rawURL and checks it against the policy.
// Only literal IP hosts are checked; names are not resolved.
func (p EndpointPolicy) ValidateEndpoint(rawURL string) (*url.URL, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("endpoint is empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("endpoint must be an absolute URL: %q", rawURL)
	}

	schemes := p.AllowedSchemes
	if len(schemes) == 0 {
		schemes = []string{"http", "https"}
	}
	schemeAllowed := false
	for _, s := range schemes {
		if strings.EqualFold(u.Scheme, s) {
			schemeAllowed = true
			break
		}
	}
	if !schemeAllowed {
		return nil, fmt.Errorf("invalid URL scheme: %s (only %v allowed)", u.Scheme, schemes)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("endpoint has no host: %q", rawURL)
	}

	if len(p.AllowedHosts) > 0 {
		allowed := false
		for _, h := range p.AllowedHosts {
			if strings.EqualFold(h, host) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, fmt.Errorf("host not in allowlist: %s", host)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if err := p.validateIP(ip); err != nil {
			return nil, err
		}
	}

	return u, nil
}

func (p EndpointPolicy) validateIP(ip net.IP) error {
	if ip.IsLoopback() {
		return nil
	}
	if p.BlockMetadata && ip.Equal(net.IPv4(169, 254, 169, 254)) {
		return fmt.Errorf("metadata service address blocked: %s", ip)
	}
	if p.BlockPrivateIPs && ip.IsPrivate() {
		return fmt.Errorf("private IP addresses not allowed: %s", ip)
	}
	if ip.IsMulticast() {
		return fmt.Errorf("multicast addresses not allowed: %s", ip)
	}
	return nil
}
