package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
)

// MaxLinksToAdd bounds how many depth-1 pages one seed page may enqueue.
// Together with the two-level depth bound this caps a company's corpus at
// 1 seed + MaxLinksToAdd children.
const MaxLinksToAdd = 25

// ErrCrawlInProgress is returned when a crawl is already active for the
// company. Callers treat it as a no-op, not a failure.
var ErrCrawlInProgress = errors.New("crawl already in progress for company")

// PageFetcher fetches one page. Implemented by *Fetcher; stubbed in tests.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*PageContent, error)
}

// Archiver stores raw page HTML in object storage. Implemented by the
// storage service; a nil or disabled archiver skips archiving.
type Archiver interface {
	IsEnabled() bool
	ArchivePage(ctx context.Context, companyID, pageID int64, html string) error
}

// Scheduler drives the sequential crawl loop for one company at a time.
//
// Mutual exclusion is per company: a second crawl request for a company with
// an active loop is rejected with ErrCrawlInProgress, while crawls for other
// companies may proceed.
type Scheduler struct {
	pages     repository.PageRepository
	companies repository.CompanyRepository
	fetcher   PageFetcher
	archive   Archiver
	delay     time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	active map[int64]bool
}

// NewScheduler creates a new crawl scheduler.
func NewScheduler(
	pages repository.PageRepository,
	companies repository.CompanyRepository,
	fetcher PageFetcher,
	archive Archiver,
	delay time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pages:     pages,
		companies: companies,
		fetcher:   fetcher,
		archive:   archive,
		delay:     delay,
		logger:    logger.With("component", "scheduler"),
		active:    make(map[int64]bool),
	}
}

// Crawl runs the crawl loop for a company until its pending queue is empty
// or ctx is canceled. Fetch and persistence failures are contained per page:
// the failed page is marked attempted and the loop continues.
func (s *Scheduler) Crawl(ctx context.Context, companyID int64) error {
	if !s.acquire(companyID) {
		s.logger.Info("crawl request ignored, already running", "company_id", companyID)
		return ErrCrawlInProgress
	}
	defer s.release(companyID)

	s.logger.Info("crawl started", "company_id", companyID)
	crawled := 0

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("crawl canceled", "company_id", companyID, "pages_crawled", crawled)
			return err
		}

		page, err := s.pages.NextPending(ctx, companyID)
		if err != nil {
			s.logger.Error("failed to select pending page", "company_id", companyID, "error", err)
			return err
		}
		if page == nil {
			break
		}

		s.crawlPage(ctx, page)
		crawled++

		// Politeness delay between fetches
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.delay):
		}
	}

	if err := s.companies.UpdateCrawlStats(ctx, companyID, crawled, time.Now()); err != nil {
		s.logger.Error("failed to update crawl stats", "company_id", companyID, "error", err)
	}

	s.logger.Info("crawl finished", "company_id", companyID, "pages_crawled", crawled)
	return nil
}

// crawlPage fetches one page, expands its links when it is the seed, and
// completes the crawl attempt. The page never returns to pending: failures
// set crawl_date without content.
func (s *Scheduler) crawlPage(ctx context.Context, page *models.Page) {
	content, err := s.fetcher.Fetch(ctx, page.URL)
	now := time.Now()
	if err != nil {
		s.logger.Warn("page fetch failed", "url", page.URL, "error", err)
		if markErr := s.pages.MarkAttempted(ctx, page.ID, now); markErr != nil {
			s.logger.Error("failed to mark page attempted", "url", page.URL, "error", markErr)
		}
		return
	}

	// Only the seed page expands links; depth-1 pages are terminal.
	if page.Depth == 0 {
		s.expandLinks(ctx, page, content.Links)
	}

	if err := s.pages.MarkFetched(ctx, page.ID, content.HTML, content.VisibleText, content.Title, now); err != nil {
		s.logger.Error("failed to persist page content", "url", page.URL, "error", err)
		// The page must still leave the pending set, or NextPending would
		// re-select it and the loop would re-fetch the same URL forever.
		if markErr := s.pages.MarkAttempted(ctx, page.ID, now); markErr != nil {
			s.logger.Error("failed to mark page attempted", "url", page.URL, "error", markErr)
		}
		return
	}

	if s.archive != nil && s.archive.IsEnabled() {
		if err := s.archive.ArchivePage(ctx, page.CompanyID, page.ID, content.HTML); err != nil {
			s.logger.Warn("failed to archive raw html", "url", page.URL, "error", err)
		}
	}
}

type scoredLink struct {
	url   string
	score int
}

// expandLinks filters, scores, and enqueues the seed page's outbound links
// as depth-1 pages, keeping the MaxLinksToAdd highest scoring.
func (s *Scheduler) expandLinks(ctx context.Context, seed *models.Page, links []Link) {
	base, err := url.Parse(seed.URL)
	if err != nil {
		s.logger.Warn("seed url unparseable, skipping link expansion", "url", seed.URL, "error", err)
		return
	}

	seen := make(map[string]bool)
	var candidates []scoredLink
	for _, link := range links {
		resolved, ok := AdmitLink(link.Href, base)
		if !ok {
			continue
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		candidates = append(candidates, scoredLink{
			url:   resolved,
			score: ScoreLink(resolved, link.AnchorText, link.Landmarks),
		})
	}

	// Descending by score; ties keep first-seen order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > MaxLinksToAdd {
		candidates = candidates[:MaxLinksToAdd]
	}

	added := 0
	for _, c := range candidates {
		page := &models.Page{
			CompanyID: seed.CompanyID,
			URL:       c.url,
			Depth:     1,
			CreatedAt: time.Now(),
		}
		if err := s.pages.Create(ctx, page); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				// Rediscovery of a known URL, expected
				continue
			}
			s.logger.Error("failed to enqueue discovered page", "url", c.url, "error", err)
			continue
		}
		added++
	}

	s.logger.Info("seed links expanded",
		"company_id", seed.CompanyID,
		"links_found", len(links),
		"links_admitted", len(seen),
		"pages_added", added,
	)
}

func (s *Scheduler) acquire(companyID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[companyID] {
		return false
	}
	s.active[companyID] = true
	return true
}

func (s *Scheduler) release(companyID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, companyID)
}
