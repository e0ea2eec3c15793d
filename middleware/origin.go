package middleware

import (
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// ParseAllowList splits a comma separated origin allow-list, trimming entries
// and dropping empty ones
func ParseAllowList(csv string) []string {
	parts := strings.Split(csv, ",")
	entries := make([]string, 0, len(parts))
	for _, part := range parts {
		if entry := strings.TrimSpace(part); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

type originRule struct {
	value    string         // normalized entry
	pattern  *regexp.Regexp // set for wildcard entries
	fullURL  bool           // entry carries a scheme
	hostOnly bool           // bare host without wildcard
}

// OriginPolicy decides which browser origins may call the gateway
type OriginPolicy struct {
	allowAll bool
	rules    []originRule
}

// NewOriginPolicy compiles an allow-list. Entries may be full origins
// (https://app.example.com), bare hosts (app.example.com) or globs over either
// (https://*.example.com, *.example.com). A literal "*" admits everything.
func NewOriginPolicy(entries []string) *OriginPolicy {
	p := &OriginPolicy{}
	for _, entry := range entries {
		if entry == "*" {
			p.allowAll = true
			continue
		}

		value := normalizeOrigin(entry)
		rule := originRule{
			value:   value,
			fullURL: strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://"),
		}
		if strings.Contains(value, "*") {
			rule.pattern = compileGlob(value)
		} else if !rule.fullURL {
			rule.hostOnly = true
		}
		p.rules = append(p.rules, rule)
	}
	return p
}

// Allows reports whether a request with the given Origin header is admitted.
// Requests without an Origin are always admitted.
func (p *OriginPolicy) Allows(origin string) bool {
	if origin == "" || p.allowAll {
		return true
	}

	normalized := normalizeOrigin(origin)
	host := originHost(normalized)

	for _, rule := range p.rules {
		if rule.value == normalized {
			return true
		}

		switch {
		case rule.pattern != nil && rule.fullURL:
			if rule.pattern.MatchString(normalized) {
				return true
			}
		case rule.pattern != nil:
			if host != "" && rule.pattern.MatchString(host) {
				return true
			}
		case rule.hostOnly:
			if host != "" && host == rule.value {
				return true
			}
		}
	}
	return false
}

// AllowOriginFunc adapts the policy to go-chi/cors
func (p *OriginPolicy) AllowOriginFunc(_ *http.Request, origin string) bool {
	return p.Allows(origin)
}

func normalizeOrigin(origin string) string {
	origin = strings.TrimSpace(origin)
	origin = strings.TrimSuffix(origin, "/")
	return strings.ToLower(origin)
}

// originHost returns host[:port] of an origin, dropping the scheme's default port
func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return ""
	}

	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return u.Host
	}
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		return host
	}
	return u.Host
}

// compileGlob turns a pattern where * matches any substring into an anchored,
// case-insensitive regexp
func compileGlob(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(pattern)
	return regexp.MustCompile(`(?i)^` + strings.ReplaceAll(quoted, `\*`, `.*`) + `$`)
}
