// Package security vets source locators before they are handed to the
// external download tool.
package security

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

var blockedPathPatterns = []string{
	"file://",
	"../",
	"..\\",
	"/etc/",
	"/proc/",
	"/sys/",
	"c:/",
	"c:\\",
	"%2e%2e/",
	"%2e%2e%2f",
	"..%2f",
	"%2e%2e%5c",
	"..%5c",
}

// LocatorValidator checks that a source locator is a public http(s) URL,
// optionally restricted to a set of source domains
type LocatorValidator struct {
	allowedDomains []string
	lookup         LookupFunc
}

// Option configures a LocatorValidator
type Option func(*LocatorValidator)

// WithAllowedDomains restricts hosts to the given domains and their subdomains
func WithAllowedDomains(domains ...string) Option {
	return func(v *LocatorValidator) {
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				v.allowedDomains = append(v.allowedDomains, d)
			}
		}
	}
}

// WithLookup replaces the DNS resolver
func WithLookup(fn LookupFunc) Option {
	return func(v *LocatorValidator) {
		v.lookup = fn
	}
}

// NewLocatorValidator creates a validator
func NewLocatorValidator(opts ...Option) *LocatorValidator {
	v := &LocatorValidator{lookup: defaultLookup}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs protocol, domain, host and path checks on locator
func (v *LocatorValidator) Validate(ctx context.Context, locator string) error {
	u, err := url.Parse(locator)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	case "":
		return fmt.Errorf("protocol scheme is required")
	default:
		return fmt.Errorf("protocol '%s' is not allowed (only http/https permitted)", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if len(v.allowedDomains) > 0 && !v.domainAllowed(host) {
		return fmt.Errorf("host '%s' is not an allowed source", host)
	}

	if err := checkHost(ctx, host, v.lookup); err != nil {
		return fmt.Errorf("host validation failed: %w", err)
	}

	if err := checkPath(u.Path); err != nil {
		return fmt.Errorf("path validation failed: %w", err)
	}

	for key, values := range u.Query() {
		for _, value := range values {
			if err := checkPath(value); err != nil {
				return fmt.Errorf("query parameter '%s' contains dangerous pattern: %w", key, err)
			}
		}
	}

	return nil
}

func (v *LocatorValidator) domainAllowed(host string) bool {
	for _, d := range v.allowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func checkPath(p string) error {
	lower := strings.ToLower(p)
	for _, pattern := range blockedPathPatterns {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("blocked pattern '%s'", pattern)
		}
	}
	return nil
}
