package crawler

import (
	"net/url"
	"strings"
)

// excludedKeywords reject links that never carry company intelligence
// (auth flows, commerce checkouts, hiring pages, help centers).
var excludedKeywords = []string{
	"login", "signup", "careers", "support", "legal", "terms", "privacy",
	"cart", "checkout", "account", "profile", "events", "webinar", "jobs",
	"hiring", "apply", "faq", "help",
}

// AdmitLink resolves candidate against base and decides whether the resulting
// URL may join the crawl queue. It returns the resolved absolute URL and true
// when admitted.
//
// A candidate is rejected when it cannot be parsed, points outside the base
// hostname (or its subdomains), carries a fragment identifier, or contains an
// excluded keyword.
func AdmitLink(candidate string, base *url.URL) (string, bool) {
	if base == nil || candidate == "" {
		return "", false
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(parsed)

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	baseHost := strings.ToLower(base.Hostname())
	host := strings.ToLower(resolved.Hostname())
	if host != baseHost && !strings.HasSuffix(host, "."+baseHost) {
		return "", false
	}

	if resolved.Fragment != "" {
		return "", false
	}

	lowered := strings.ToLower(resolved.String())
	for _, kw := range excludedKeywords {
		if strings.Contains(lowered, kw) {
			return "", false
		}
	}

	return resolved.String(), true
}
