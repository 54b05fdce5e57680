package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	officialHosts = []string{
		"api.anthropic.com",
		"api.openai.com",
		"generativelanguage.googleapis.com",
		"openrouter.ai",
	}

	ErrPrivateIP     = errors.New("base URL resolves to a private IP address")
	ErrUntrustedHost = errors.New("base URL host is not an official provider endpoint")
	ErrInvalidScheme = errors.New("only HTTPS base URLs are allowed")
	ErrMissingHost   = errors.New("base URL has no host")

	lookupIP = net.LookupIP
)

// ValidateBaseURL checks a provider base URL override before any key is sent
// to it. allowInsecure admits plain http and private addresses for local
// gateways. strict limits the host to the official provider endpoints.
func ValidateBaseURL(rawURL string, strict, allowInsecure bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !allowInsecure {
			return ErrInvalidScheme
		}
	default:
		return ErrInvalidScheme
	}

	host := parsed.Hostname()
	if host == "" {
		return ErrMissingHost
	}

	if strict && !IsOfficialHost(host) {
		return ErrUntrustedHost
	}

	if allowInsecure {
		return nil
	}
	return validateHostIP(host)
}

func IsOfficialHost(host string) bool {
	host = strings.ToLower(host)
	for _, allowed := range officialHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	ips, err := lookupIP(host)
	if err != nil {
		// Unresolvable hosts fail later at dial time with a clearer error.
		return nil
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}
	return nil
}

var reservedV4 = []*net.IPNet{
	mustCIDR("0.0.0.0/8"),
	mustCIDR("100.64.0.0/10"),
	mustCIDR("192.0.0.0/24"),
	mustCIDR("192.0.2.0/24"),
	mustCIDR("198.51.100.0/24"),
	mustCIDR("203.0.113.0/24"),
	mustCIDR("224.0.0.0/4"),
	mustCIDR("240.0.0.0/4"),
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}
	if ip4 := ip.To4(); ip4 != nil {
		for _, n := range reservedV4 {
			if n.Contains(ip4) {
				return true
			}
		}
	}
	return false
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}
