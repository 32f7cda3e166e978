// Package insights implements the LLM extraction pipeline: page
// prioritization, prompt assembly, and tolerant response parsing.
package insights

import (
	"sort"
	"strings"

	"github.com/companyintel/companyintel-api/internal/models"
)

const (
	// MaxPagesToProcess bounds how many pages feed one extraction run.
	MaxPagesToProcess = 25

	// FetchWindow is how many recently crawled pages to consider before
	// ranking; fetching more than the final cap leaves room for preferred
	// paths to displace unrelated pages.
	FetchWindow = MaxPagesToProcess * 2
)

// preferredPaths rank extraction input pages. A page whose URL ends with an
// earlier entry outranks one matching a later entry; pages matching none rank
// last. The home page carries the tagline, pricing and about pages carry the
// densest business facts.
var preferredPaths = []string{"/", "/pricing", "/about", "/contact", "/features"}

// RankPages orders pages by preferred-path rank and truncates to max.
// The incoming slice is expected in crawl_date-descending order; ties on
// rank preserve that order. The input slice is not modified.
func RankPages(pages []*models.Page, max int) []*models.Page {
	ranked := make([]*models.Page, len(pages))
	copy(ranked, pages)

	sort.SliceStable(ranked, func(i, j int) bool {
		return pathRank(ranked[i].URL) < pathRank(ranked[j].URL)
	})

	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// pathRank returns the index of the first preferred path the URL ends with,
// or len(preferredPaths) when none match.
func pathRank(pageURL string) int {
	for i, path := range preferredPaths {
		if strings.HasSuffix(pageURL, path) {
			return i
		}
	}
	return len(preferredPaths)
}
