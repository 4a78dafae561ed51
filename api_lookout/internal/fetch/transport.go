package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxRedirects is the redirect hop limit for every outbound request.
const MaxRedirects = 5

var (
	ErrPrivateAddress  = errors.New("destination resolves to a private or reserved address")
	ErrTooManyRedirect = errors.New("stopped after too many redirects")
	ErrUnsupportedURL  = errors.New("only absolute http(s) urls can be fetched")
)

var privateCIDRs []*net.IPNet

func init() {
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",  // CGNAT
		"169.254.0.0/16", // link-local
		"192.0.0.0/24",
		"198.18.0.0/15", // benchmarking
		"fc00::/7",      // IPv6 ULA
	} {
		_, parsed, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad CIDR %q: %v", cidr, err))
		}
		privateCIDRs = append(privateCIDRs, parsed)
	}
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientConfig configures the outbound HTTP client used for user-supplied sites.
type ClientConfig struct {
	// Timeout bounds a whole request including redirects. Zero leaves it to
	// the caller's context.
	Timeout time.Duration
	// AllowPrivate disables the private address guard (tests, local dev).
	AllowPrivate bool
}

// NewClient returns an http.Client whose dialer refuses private destinations
// and which stops after MaxRedirects hops.
func NewClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout:       cfg.Timeout,
		Transport:     newTransport(cfg.AllowPrivate),
		CheckRedirect: checkRedirect,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > MaxRedirects {
		return ErrTooManyRedirect
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return ErrUnsupportedURL
	}
	return nil
}

func newTransport(allowPrivate bool) *http.Transport {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 nil,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
	if allowPrivate {
		transport.DialContext = dialer.DialContext
		return transport
	}
	transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("ssrf dialer: invalid address %q: %w", addr, err)
		}

		ips, err := net.DefaultResolver.LookupHost(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("ssrf dialer: dns lookup %s: %w", host, err)
		}
		if len(ips) == 0 {
			return nil, fmt.Errorf("ssrf dialer: no addresses for %s", host)
		}
		for _, ipStr := range ips {
			ip := net.ParseIP(ipStr)
			if ip == nil {
				continue
			}
			if isPrivateIP(ip) {
				return nil, fmt.Errorf("%w: %s -> %s", ErrPrivateAddress, host, ipStr)
			}
		}

		// Dial the checked IP so a second lookup cannot rebind it.
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
	}
	return transport
}

// ValidateURL checks scheme and host before any network activity.
func ValidateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return nil, ErrUnsupportedURL
	}
	if parsed.Hostname() == "" {
		return nil, ErrUnsupportedURL
	}
	return parsed, nil
}
