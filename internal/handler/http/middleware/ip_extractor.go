// Package middleware provides client identity extraction for the sync surface.
// The lockout service keys attempt records by client trust tier, so the
// extraction here decides which request attributes can be believed.
package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strings"
)

// IPExtractor is an interface for extracting client IP addresses from HTTP requests.
// It provides an abstraction layer for different IP extraction strategies,
// allowing the application to choose between secure RemoteAddr extraction
// (default) or header-based extraction with proxy trust validation (opt-in).
type IPExtractor interface {
	// ExtractIP extracts the client IP address from an HTTP request.
	// Returns the IP address as a string and an error if extraction fails.
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor extracts the client IP from the RemoteAddr field of the HTTP request.
// This is the default and most secure approach as it uses the actual TCP connection IP,
// which cannot be spoofed by the client.
type RemoteAddrExtractor struct{}

// ExtractIP extracts the IP address from r.RemoteAddr.
// The RemoteAddr format is "IP:port", so this method strips the port number
// to return only the IP address. Handles both IPv4 and IPv6 addresses correctly.
func (e *RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return extractIPFromAddr(r.RemoteAddr)
}

// TrustedProxyConfig holds configuration for validating trusted reverse proxies.
// When enabled, the extractor will check if the request comes from a trusted proxy
// before extracting the client IP from X-Forwarded-For or X-Real-IP headers.
type TrustedProxyConfig struct {
	// Enabled indicates whether proxy trust is enabled.
	// When false, all header-based extraction is disabled.
	Enabled bool

	// AllowedCIDRs is a list of trusted proxy IP ranges in CIDR notation.
	// Both single IPs (converted to /32 or /128) and CIDR ranges are supported.
	AllowedCIDRs []netip.Prefix
}

// IsTrusted checks if the given RemoteAddr belongs to a trusted proxy.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	ip, err := extractIPFromAddr(remoteAddr)
	if err != nil {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}

	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// LoadTrustedProxyConfig loads trusted proxy configuration from environment variables.
//
// Environment Variables:
//   - RATE_LIMIT_TRUST_PROXY: Set to "true" to enable proxy trust checking (default: false)
//   - RATE_LIMIT_TRUSTED_PROXIES: Comma-separated list of trusted proxy IPs or CIDR ranges
//
// Fail-closed: invalid configuration prevents application startup.
func LoadTrustedProxyConfig() (*TrustedProxyConfig, error) {
	enabled := os.Getenv("RATE_LIMIT_TRUST_PROXY") == "true"

	config := &TrustedProxyConfig{
		Enabled:      enabled,
		AllowedCIDRs: []netip.Prefix{},
	}

	if !enabled {
		return config, nil
	}

	proxiesStr := strings.TrimSpace(os.Getenv("RATE_LIMIT_TRUSTED_PROXIES"))
	if proxiesStr == "" {
		return nil, fmt.Errorf("RATE_LIMIT_TRUST_PROXY is enabled but RATE_LIMIT_TRUSTED_PROXIES is empty")
	}

	proxyList := strings.Split(proxiesStr, ",")
	for _, proxyStr := range proxyList {
		proxyStr = strings.TrimSpace(proxyStr)
		if proxyStr == "" {
			continue
		}

		// Try to parse as CIDR first
		prefix, err := netip.ParsePrefix(proxyStr)
		if err != nil {
			// If CIDR parsing fails, try parsing as a single IP
			ip, ipErr := netip.ParseAddr(proxyStr)
			if ipErr != nil {
				return nil, fmt.Errorf("invalid IP or CIDR format '%s': must be valid IP address or CIDR notation (e.g., '192.168.1.1' or '10.0.0.0/8')", proxyStr)
			}

			// Convert single IP to /32 (IPv4) or /128 (IPv6) prefix
			if ip.Is4() {
				prefix = netip.PrefixFrom(ip, 32)
			} else {
				prefix = netip.PrefixFrom(ip, 128)
			}
		}

		config.AllowedCIDRs = append(config.AllowedCIDRs, prefix)
	}

	if len(config.AllowedCIDRs) == 0 {
		return nil, fmt.Errorf("RATE_LIMIT_TRUST_PROXY is enabled but no valid proxies found in RATE_LIMIT_TRUSTED_PROXIES")
	}

	return config, nil
}

// TrustedProxyExtractor extracts the client IP from X-Forwarded-For or X-Real-IP headers
// when the request comes from a trusted proxy. If the proxy is not trusted, it falls back
// to RemoteAddr extraction to prevent IP spoofing attacks.
//
// Header extraction priority:
// 1. X-Forwarded-For (first IP in comma-separated list)
// 2. X-Real-IP (fallback)
// 3. RemoteAddr (if proxy is not trusted or headers are missing)
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

// NewTrustedProxyExtractor creates a new TrustedProxyExtractor with the given configuration.
func NewTrustedProxyExtractor(config TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{
		config: config,
	}
}

// ExtractIP extracts the client IP address. When proxy trust is disabled or
// the peer is not a trusted proxy the forwarding headers are ignored, which
// prevents lockout-bypass attacks where a client rotates its apparent IP by
// spoofing X-Forwarded-For.
func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	// If proxy trust is disabled, always use RemoteAddr
	if !e.config.Enabled {
		return extractIPFromAddr(r.RemoteAddr)
	}

	// Check if the request comes from a trusted proxy
	if !e.config.IsTrusted(r.RemoteAddr) {
		// Log warning if headers are present but proxy is not trusted
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			slog.Warn("untrusted proxy attempting to set X-Forwarded-For",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_forwarded_for", xff),
			)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			slog.Warn("untrusted proxy attempting to set X-Real-IP",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("x_real_ip", xri),
			)
		}

		return extractIPFromAddr(r.RemoteAddr)
	}

	// Trusted proxy: Try X-Forwarded-For first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip, nil
		}
	}

	// Fallback to X-Real-IP
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String(), nil
		}
	}

	// Final fallback to RemoteAddr
	return extractIPFromAddr(r.RemoteAddr)
}

// extractIPFromAddr extracts the IP address from a "host:port" or "IP" string.
// Handles both IPv4 and IPv6 addresses correctly.
func extractIPFromAddr(addr string) (string, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		// The address might not have a port; try to parse it directly as an IP
		if ip := net.ParseIP(addr); ip != nil {
			return ip.String(), nil
		}
		return "", fmt.Errorf("invalid address format: %s", addr)
	}
	return host, nil
}

// parseFirstIP parses the first IP address from a comma-separated list.
// This is used for X-Forwarded-For headers, which may contain multiple IPs
// in the format: "client, proxy1, proxy2".
func parseFirstIP(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			ip := net.ParseIP(s[:i])
			if ip != nil {
				return ip.String()
			}
			return ""
		}
	}

	// No comma found, parse the entire string
	if ip := net.ParseIP(s); ip != nil {
		return ip.String()
	}
	return ""
}
