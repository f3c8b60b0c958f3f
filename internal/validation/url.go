package validation

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

// URLValidator checks URLs the user configures: the backend base URL and
// topic source feeds.
type URLValidator struct {
	// AllowLocalhost permits loopback hosts such as localhost or 127.0.0.1
	AllowLocalhost bool
	// AllowPrivateIPs permits RFC 1918, link-local and ULA addresses
	AllowPrivateIPs bool
	// KeepQuery keeps the query string; base URLs drop it
	KeepQuery bool
	MaxLength int
}

// NewSourceValidator is used for topic feeds fetched from the internet.
func NewSourceValidator() *URLValidator {
	return &URLValidator{KeepQuery: true, MaxLength: 2048}
}

// NewPermissiveSourceValidator also accepts local feeds.
func NewPermissiveSourceValidator() *URLValidator {
	return &URLValidator{AllowLocalhost: true, AllowPrivateIPs: true, KeepQuery: true, MaxLength: 2048}
}

// NewBackendValidator accepts a backend running anywhere, the usual case
// being one on localhost.
func NewBackendValidator() *URLValidator {
	return &URLValidator{AllowLocalhost: true, AllowPrivateIPs: true, MaxLength: 2048}
}

// Normalize validates input and returns its canonical form. A missing
// scheme becomes http:// for loopback hosts and https:// otherwise.
// Trailing slashes are removed from the path.
func (v *URLValidator) Normalize(input string) (string, error) {
	u, err := v.Parse(input)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Parse is Normalize returning the parsed URL.
func (v *URLValidator) Parse(input string) (*url.URL, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("URL cannot be empty")
	}
	if v.MaxLength > 0 && len(input) > v.MaxLength {
		return nil, fmt.Errorf("URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'` ") {
		return nil, fmt.Errorf("URL contains invalid characters")
	}

	if !strings.Contains(input, "://") {
		scheme := "https://"
		if isLocalhost(hostOf(input)) {
			scheme = "http://"
		}
		input = scheme + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("URL must use http or https protocol")
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("URL must have a valid hostname")
	}
	if u.User != nil {
		return nil, fmt.Errorf("credentials in URLs are not permitted")
	}
	if err := v.checkHost(u.Hostname()); err != nil {
		return nil, err
	}
	if strings.Contains(u.Path, "..") {
		return nil, fmt.Errorf("directory traversal patterns not allowed in URL path")
	}

	u.Fragment = ""
	if !v.KeepQuery {
		u.RawQuery = ""
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u, nil
}

func (v *URLValidator) checkHost(hostname string) error {
	if isBlockedHost(hostname) {
		return fmt.Errorf("host %s is not routable", hostname)
	}
	if isLocalhost(hostname) {
		if !v.AllowLocalhost {
			return fmt.Errorf("localhost URLs are not permitted")
		}
		return nil
	}
	if addr, err := netip.ParseAddr(hostname); err == nil && !v.AllowPrivateIPs {
		if addr.IsPrivate() || addr.IsLinkLocalUnicast() {
			return fmt.Errorf("private IP addresses are not permitted")
		}
	}
	return nil
}

// hostOf extracts the host from a scheme-less URL.
func hostOf(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return s
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(strings.Trim(hostname, "[]"))
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	addr, err := netip.ParseAddr(hostname)
	return err == nil && addr.IsLoopback()
}

func isBlockedHost(hostname string) bool {
	addr, err := netip.ParseAddr(strings.Trim(hostname, "[]"))
	if err != nil {
		return false
	}
	return addr.IsUnspecified() || addr == netip.AddrFrom4([4]byte{255, 255, 255, 255})
}
