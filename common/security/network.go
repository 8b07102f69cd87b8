package security

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// LookupFunc resolves a hostname to addresses
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

// defaultLookup resolves through the system resolver
func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

var blockedHostnames = map[string]bool{
	"localhost":        true,
	"127.0.0.1":        true,
	"::1":              true,
	"0.0.0.0":          true,
	"::":               true,
	"::ffff:127.0.0.1": true,
}

// checkIP rejects loopback, private, link-local, multicast and unspecified addresses
func checkIP(ip net.IP) error {
	switch {
	case ip == nil:
		return fmt.Errorf("IP address is nil")
	case ip.IsLoopback():
		return fmt.Errorf("IP %s is blocked (loopback address)", ip)
	case ip.IsPrivate():
		return fmt.Errorf("IP %s is blocked (private network)", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return fmt.Errorf("IP %s is blocked (link-local address)", ip)
	case ip.IsMulticast():
		return fmt.Errorf("IP %s is blocked (multicast address)", ip)
	case ip.IsUnspecified():
		return fmt.Errorf("IP %s is blocked (unspecified address)", ip)
	}
	return nil
}

// checkHost rejects local hostnames and hosts resolving to internal addresses.
// Lookup failures pass; the download tool fails on its own when DNS is broken.
func checkHost(ctx context.Context, hostname string, lookup LookupFunc) error {
	if hostname == "" {
		return fmt.Errorf("hostname is required")
	}

	host := strings.ToLower(strings.TrimSpace(hostname))
	if blockedHostnames[host] || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("hostname '%s' is blocked (localhost access)", hostname)
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(ip)
	}

	ips, err := lookup(ctx, host)
	if err != nil {
		return nil
	}
	if len(ips) == 0 {
		return fmt.Errorf("hostname '%s' resolved to no addresses", hostname)
	}

	for _, ip := range ips {
		if err := checkIP(ip); err != nil {
			return err
		}
	}
	return nil
}
