// Package urlvalidator validates operator-supplied URLs before they are
// used as redirect or upstream targets.
package urlvalidator

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationOptions controls host-level checks beyond basic URL shape.
type ValidationOptions struct {
	// AllowedHosts is an optional host allowlist. Entries are exact hosts
	// or wildcard patterns like "*.example.com".
	AllowedHosts []string
	// RequireAllowlist rejects the URL when AllowedHosts is empty.
	RequireAllowlist bool
	// AllowPrivate permits localhost and private-range hosts.
	AllowPrivate bool
}

// ValidateURLFormat checks that raw is an absolute http(s) URL and returns
// it normalized with trailing slashes removed. Plain http is rejected
// unless allowInsecureHTTP is set.
func ValidateURLFormat(raw string, allowInsecureHTTP bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url must not be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !allowInsecureHTTP {
			return "", fmt.Errorf("insecure http url %q not allowed", raw)
		}
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q is missing a host", raw)
	}

	u.Path = strings.TrimRight(u.Path, "/")
	return strings.TrimRight(u.String(), "/"), nil
}

// ValidateHTTPURL validates raw as ValidateURLFormat does, then applies the
// host policy in opts.
func ValidateHTTPURL(raw string, allowInsecureHTTP bool, opts ValidationOptions) (string, error) {
	normalized, err := ValidateURLFormat(raw, allowInsecureHTTP)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	host := strings.ToLower(u.Hostname())

	if opts.RequireAllowlist && len(opts.AllowedHosts) == 0 {
		return "", fmt.Errorf("a host allowlist is required but none is configured")
	}
	if len(opts.AllowedHosts) > 0 && !hostAllowed(host, opts.AllowedHosts) {
		return "", fmt.Errorf("host %q is not in the allowlist", host)
	}
	if !opts.AllowPrivate && isPrivateHost(host) {
		return "", fmt.Errorf("private host %q not allowed", host)
	}
	return normalized, nil
}

func hostAllowed(host string, allowed []string) bool {
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.HasPrefix(entry, "*.") {
			if strings.HasSuffix(host, entry[1:]) {
				return true
			}
			continue
		}
		if host == entry {
			return true
		}
	}
	return false
}

func isPrivateHost(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") || strings.HasSuffix(host, ".internal") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
	}
	return false
}
