// Package metadata normalizes and deduplicates the sources a research
// run collected, so reports cite each page once under a stable URL.
package metadata

import (
	"net/url"
	"strings"
)

// Citation is one cited source in a report.
type Citation struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	QueryType string `json:"query_type"`
}

// NormalizeURL canonicalizes a URL for deduplication: lowercase scheme
// and host, no www. prefix, no fragment, no tracking parameters, no
// trailing slash.
func NormalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	if strings.HasPrefix(parsed.Host, "www.") {
		parsed.Host = parsed.Host[4:]
	}
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		q := parsed.Query()
		trackingParams := []string{
			"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
			"fbclid", "gclid", "msclkid",
			"ref", "source",
		}
		for _, param := range trackingParams {
			q.Del(param)
		}
		parsed.RawQuery = q.Encode()
	}

	parsed.Path = strings.TrimSuffix(parsed.Path, "/")

	return parsed.String(), nil
}

// ExtractDomain returns the lowercase host, removing any port and a
// leading "www." but preserving other subdomains.
// Example: "https://blog.example.com/path" -> "blog.example.com"
func ExtractDomain(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	host := strings.ToLower(parsed.Host)
	if colonIndex := strings.Index(host, ":"); colonIndex != -1 {
		host = host[:colonIndex]
	}
	if strings.HasPrefix(host, "www.") {
		host = host[4:]
	}
	return host, nil
}

// Collect normalizes, deduplicates, and caps citations. The first
// occurrence of a URL wins, preserving input order. Unparseable URLs
// are kept as-is rather than dropped: a bad URL is still a source the
// run actually read.
func Collect(candidates []Citation, max int) []Citation {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]Citation, 0, len(candidates))
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		key := c.URL
		if normalized, err := NormalizeURL(c.URL); err == nil && normalized != "" {
			key = normalized
			c.URL = normalized
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if c.Domain == "" {
			if domain, err := ExtractDomain(c.URL); err == nil {
				c.Domain = domain
			}
		}
		out = append(out, c)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
