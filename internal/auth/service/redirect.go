package service

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var ErrRedirectNotAllowed = errors.New("redirect_uri not allowed")

// DefaultRedirectHosts is the allow-list used when none is configured.
var DefaultRedirectHosts = []string{"localhost", "127.0.0.1"}

// RedirectValidator judges candidate redirect URIs. A URI is accepted when
// it parses as an absolute http or https URL and its host either exactly
// matches the allow-list (case-insensitive) or matches one of the compiled
// host patterns. There is no prefix matching beyond what a pattern encodes.
type RedirectValidator struct {
	hosts    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewRedirectValidator compiles the host patterns up front so a bad pattern
// fails at startup rather than on the first authorize request.
func NewRedirectValidator(hosts, patterns []string) (*RedirectValidator, error) {
	if len(hosts) == 0 {
		hosts = DefaultRedirectHosts
	}

	v := &RedirectValidator{hosts: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		v.hosts[h] = struct{}{}
	}

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redirect host pattern %q: %w", p, err)
		}
		v.patterns = append(v.patterns, re)
	}

	return v, nil
}

// Validate returns ErrRedirectNotAllowed unless uri is an absolute http(s)
// URL whose host is allow-listed or pattern-matched.
func (v *RedirectValidator) Validate(uri string) error {
	host, err := parseRedirectHost(uri)
	if err != nil {
		return err
	}

	if _, ok := v.hosts[host]; ok {
		return nil
	}
	for _, re := range v.patterns {
		if re.MatchString(host) {
			return nil
		}
	}
	return ErrRedirectNotAllowed
}

// parseRedirectHost extracts the lowercased host from an absolute http(s)
// URL, or fails with ErrRedirectNotAllowed.
func parseRedirectHost(uri string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", ErrRedirectNotAllowed
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrRedirectNotAllowed
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", ErrRedirectNotAllowed
	}
	return host, nil
}
