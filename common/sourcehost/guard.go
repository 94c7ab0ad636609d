package sourcehost

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrBlockedSource is returned when a clone URL points somewhere builds may not reach
var ErrBlockedSource = errors.New("source url blocked")

// URLGuard rejects clone URLs that would let a build reach the platform's
// own network: non-http schemes, loopback, private and link-local hosts.
type URLGuard struct {
	allowedSchemes   map[string]bool
	blockedHostnames map[string]bool

	// lookup resolves hostnames; replaced in tests
	lookup func(host string) ([]net.IP, error)
}

// NewURLGuard creates a guard allowing http and https sources only
func NewURLGuard() *URLGuard {
	return &URLGuard{
		allowedSchemes: map[string]bool{
			"http":  true,
			"https": true,
		},
		blockedHostnames: map[string]bool{
			"localhost":        true,
			"127.0.0.1":        true,
			"::1":              true,
			"0.0.0.0":          true,
			"::":               true,
			"::ffff:127.0.0.1": true,
		},
		lookup: net.LookupIP,
	}
}

// Validate checks the scheme and every address the host resolves to
func (g *URLGuard) Validate(cloneURL string) error {
	parsed, err := url.Parse(cloneURL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL format: %v", ErrBlockedSource, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !g.allowedSchemes[scheme] {
		return fmt.Errorf("%w: protocol '%s' is not allowed (only http/https permitted)", ErrBlockedSource, parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("%w: hostname is required", ErrBlockedSource)
	}
	if g.blockedHostnames[host] {
		return fmt.Errorf("%w: hostname '%s' is a loopback address", ErrBlockedSource, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}

	ips, err := g.lookup(host)
	if err != nil {
		// Unresolvable hosts fail at clone time anyway
		return nil
	}
	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}

func checkIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("%w: IP %s is a loopback address", ErrBlockedSource, ip)
	case ip.IsPrivate():
		return fmt.Errorf("%w: IP %s is on a private network", ErrBlockedSource, ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// 169.254.169.254 is the cloud metadata service
		return fmt.Errorf("%w: IP %s is link-local", ErrBlockedSource, ip)
	case ip.IsMulticast():
		return fmt.Errorf("%w: IP %s is multicast", ErrBlockedSource, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: IP %s is unspecified", ErrBlockedSource, ip)
	}
	return nil
}
