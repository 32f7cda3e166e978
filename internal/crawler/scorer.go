// Package crawler implements the bounded per-company web crawler: link
// scoring and admission, page fetching, and the sequential crawl scheduler.
package crawler

import (
	"strings"
)

// preferredKeywords raise a link's crawl priority when they appear in its URL
// or anchor text. Each keyword counts once per context, so a link matching the
// same keyword in both URL and anchor scores 2 for it.
var preferredKeywords = []string{
	"pricing",
	"about",
	"contact",
	"features",
	"product",
	"services",
	"customers",
	"solutions",
	"platform",
	"technology",
	"partners",
	"company",
}

// Landmarks records which structural HTML regions enclose a link element.
type Landmarks struct {
	InNav    bool
	InFooter bool
	InAside  bool
}

// ScoreLink scores a candidate link by keyword and placement heuristics.
// Higher score means higher crawl priority. Deterministic, no side effects.
func ScoreLink(linkURL, anchorText string, lm Landmarks) int {
	score := 0

	lowerURL := strings.ToLower(linkURL)
	lowerText := strings.ToLower(anchorText)
	for _, kw := range preferredKeywords {
		if strings.Contains(lowerURL, kw) {
			score++
		}
		if strings.Contains(lowerText, kw) {
			score++
		}
	}

	// Navigation links are the strongest structural signal; footer and aside
	// links are weaker but still beat body links.
	if lm.InNav {
		score += 2
	}
	if lm.InFooter || lm.InAside {
		score++
	}

	return score
}
