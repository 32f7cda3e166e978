package crawler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/companyintel/companyintel-api/internal/database/migrations"
	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
)

func setupTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}
	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return repository.NewRepositories(db)
}

func createTestCompany(t *testing.T, repos *repository.Repositories, domain string) *models.Company {
	t.Helper()
	company := &models.Company{
		Name:      "Test Co",
		Domain:    domain,
		CreatedAt: time.Now(),
	}
	if err := repos.Company.Create(context.Background(), company); err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}
	return company
}

func createSeedPage(t *testing.T, repos *repository.Repositories, companyID int64, url string) *models.Page {
	t.Helper()
	page := &models.Page{
		CompanyID: companyID,
		URL:       url,
		Depth:     0,
		CreatedAt: time.Now(),
	}
	if err := repos.Page.Create(context.Background(), page); err != nil {
		t.Fatalf("failed to create seed page: %v", err)
	}
	return page
}

// stubFetcher serves canned content per URL and records fetch order.
type stubFetcher struct {
	mu      sync.Mutex
	content map[string]*PageContent
	errs    map[string]error
	fetched []string
}

func (f *stubFetcher) Fetch(ctx context.Context, pageURL string) (*PageContent, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, pageURL)
	f.mu.Unlock()

	if err, ok := f.errs[pageURL]; ok {
		return nil, err
	}
	if content, ok := f.content[pageURL]; ok {
		return content, nil
	}
	return &PageContent{HTML: "<html></html>", Title: "page", VisibleText: "page"}, nil
}

func (f *stubFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func newTestScheduler(repos *repository.Repositories, fetcher PageFetcher) *Scheduler {
	return NewScheduler(repos.Page, repos.Company, fetcher, nil, 0, nil)
}

func TestScheduler_CrawlExpandsSeedInScoreOrder(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	createSeedPage(t, repos, company.ID, "https://ex.com/")

	// Scores: /pricing in nav = 1 (url) + 1 (anchor) + 2 (nav) = 4;
	// /about = 1 + 1 = 2; /blog = 0.
	fetcher := &stubFetcher{
		content: map[string]*PageContent{
			"https://ex.com/": {
				HTML:        "<html>seed</html>",
				Title:       "Ex",
				VisibleText: "seed",
				Links: []Link{
					{Href: "/blog", AnchorText: "Blog"},
					{Href: "/pricing", AnchorText: "Pricing", Landmarks: Landmarks{InNav: true}},
					{Href: "/about", AnchorText: "About"},
				},
			},
		},
	}

	s := newTestScheduler(repos, fetcher)
	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	pages, err := repos.Page.ListByCompany(ctx, company.ID)
	if err != nil {
		t.Fatalf("ListByCompany() error = %v", err)
	}
	if len(pages) != 4 {
		t.Fatalf("got %d pages, want 4 (seed + 3 children)", len(pages))
	}

	// All pages end fetched, seed keeps depth 0
	var seed *models.Page
	byURL := make(map[string]*models.Page)
	for _, p := range pages {
		if !p.Fetched() {
			t.Errorf("page %s still pending after crawl", p.URL)
		}
		if p.Depth == 0 {
			seed = p
		}
		byURL[p.URL] = p
	}
	if seed == nil || seed.URL != "https://ex.com/" {
		t.Fatal("seed page missing or depth changed")
	}

	// Children inserted in descending score order: ids assigned sequentially
	pricing := byURL["https://ex.com/pricing"]
	about := byURL["https://ex.com/about"]
	blog := byURL["https://ex.com/blog"]
	if pricing == nil || about == nil || blog == nil {
		t.Fatal("missing expected child pages")
	}
	if !(pricing.ID < about.ID && about.ID < blog.ID) {
		t.Errorf("insert order by id = pricing:%d about:%d blog:%d, want pricing < about < blog",
			pricing.ID, about.ID, blog.ID)
	}
	for _, p := range []*models.Page{pricing, about, blog} {
		if p.Depth != 1 {
			t.Errorf("child %s depth = %d, want 1", p.URL, p.Depth)
		}
	}

	// Crawl bookkeeping recorded on the company
	got, err := repos.Company.GetByID(ctx, company.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PagesScrapedCount != 4 {
		t.Errorf("PagesScrapedCount = %d, want 4", got.PagesScrapedCount)
	}
	if got.LastScrapedAt == nil {
		t.Error("LastScrapedAt not set")
	}
}

func TestScheduler_CapsChildPagesAtMax(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	createSeedPage(t, repos, company.ID, "https://ex.com/")

	var links []Link
	for i := 0; i < 40; i++ {
		links = append(links, Link{Href: fmt.Sprintf("/page-%02d", i)})
	}
	fetcher := &stubFetcher{
		content: map[string]*PageContent{
			"https://ex.com/": {HTML: "<html></html>", VisibleText: "seed", Links: links},
		},
	}

	s := newTestScheduler(repos, fetcher)
	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	pages, err := repos.Page.ListByCompany(ctx, company.ID)
	if err != nil {
		t.Fatalf("ListByCompany() error = %v", err)
	}
	if len(pages) != MaxLinksToAdd+1 {
		t.Errorf("got %d pages, want %d (seed + %d children)", len(pages), MaxLinksToAdd+1, MaxLinksToAdd)
	}
}

func TestScheduler_DuplicateDiscoveryIgnored(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	createSeedPage(t, repos, company.ID, "https://ex.com/")

	// The same target three times: relative, absolute, repeated
	fetcher := &stubFetcher{
		content: map[string]*PageContent{
			"https://ex.com/": {
				HTML:        "<html></html>",
				VisibleText: "seed",
				Links: []Link{
					{Href: "/about"},
					{Href: "https://ex.com/about"},
					{Href: "/about"},
				},
			},
		},
	}

	s := newTestScheduler(repos, fetcher)
	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	pages, err := repos.Page.ListByCompany(ctx, company.ID)
	if err != nil {
		t.Fatalf("ListByCompany() error = %v", err)
	}
	if len(pages) != 2 {
		t.Errorf("got %d pages, want 2 (seed + one /about)", len(pages))
	}
}

func TestScheduler_FetchFailureIsTerminal(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	seed := createSeedPage(t, repos, company.ID, "https://ex.com/")

	fetcher := &stubFetcher{
		errs: map[string]error{
			"https://ex.com/": &FetchError{URL: "https://ex.com/", StatusCode: 503},
		},
	}

	s := newTestScheduler(repos, fetcher)
	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	got, err := repos.Page.GetByID(ctx, seed.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Fetched() {
		t.Error("failed page has no crawl_date; it would be retried forever")
	}
	if got.RawHTML != "" {
		t.Errorf("failed page has content %q, want none", got.RawHTML)
	}

	// The page never returns to pending
	pending, err := repos.Page.NextPending(ctx, company.ID)
	if err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}
	if pending != nil {
		t.Errorf("NextPending() = %v, want nil", pending.URL)
	}
}

// failingContentRepo delegates to a real repository but rejects every
// content update, like a row exceeding the driver's statement limit.
type failingContentRepo struct {
	repository.PageRepository
	markFetchedCalls int
}

func (r *failingContentRepo) MarkFetched(ctx context.Context, id int64, rawHTML, parsedText, title string, crawlDate time.Time) error {
	r.markFetchedCalls++
	return errors.New("content update rejected")
}

func TestScheduler_ContentPersistFailureEvictsPage(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	seed := createSeedPage(t, repos, company.ID, "https://ex.com/")

	pages := &failingContentRepo{PageRepository: repos.Page}
	fetcher := &stubFetcher{}
	s := NewScheduler(pages, repos.Company, fetcher, nil, 0, nil)

	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	// One fetch, one rejected update; the loop must not respin on the page
	if fetcher.fetchCount() != 1 {
		t.Errorf("fetch count = %d, want 1", fetcher.fetchCount())
	}
	if pages.markFetchedCalls != 1 {
		t.Errorf("MarkFetched calls = %d, want 1", pages.markFetchedCalls)
	}

	got, err := repos.Page.GetByID(ctx, seed.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Fetched() {
		t.Error("page still pending after failed content update")
	}
	if got.RawHTML != "" {
		t.Errorf("page has content %q after failed update", got.RawHTML)
	}

	pending, err := repos.Page.NextPending(ctx, company.ID)
	if err != nil {
		t.Fatalf("NextPending() error = %v", err)
	}
	if pending != nil {
		t.Errorf("NextPending() = %v, want nil", pending.URL)
	}
}

func TestScheduler_DepthOnePagesAreTerminal(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	createSeedPage(t, repos, company.ID, "https://ex.com/")

	// Both seed and child advertise links; only the seed's may expand
	childLinks := []Link{{Href: "/deeper"}}
	fetcher := &stubFetcher{
		content: map[string]*PageContent{
			"https://ex.com/": {
				HTML: "<html></html>", VisibleText: "seed",
				Links: []Link{{Href: "/about"}},
			},
			"https://ex.com/about": {
				HTML: "<html></html>", VisibleText: "about",
				Links: childLinks,
			},
		},
	}

	s := newTestScheduler(repos, fetcher)
	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	pages, err := repos.Page.ListByCompany(ctx, company.ID)
	if err != nil {
		t.Fatalf("ListByCompany() error = %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2; depth-1 links must not expand", len(pages))
	}
	for _, p := range pages {
		if p.URL == "https://ex.com/deeper" {
			t.Error("depth-2 page was created")
		}
	}
}

func TestScheduler_SingleFlightPerCompany(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	companyA := createTestCompany(t, repos, "https://a.com")
	companyB := createTestCompany(t, repos, "https://b.com")
	createSeedPage(t, repos, companyB.ID, "https://b.com/")

	s := newTestScheduler(repos, &stubFetcher{})

	// Simulate an active loop for company A
	if !s.acquire(companyA.ID) {
		t.Fatal("first acquire failed")
	}
	defer s.release(companyA.ID)

	if err := s.Crawl(ctx, companyA.ID); !errors.Is(err, ErrCrawlInProgress) {
		t.Errorf("Crawl(A) error = %v, want ErrCrawlInProgress", err)
	}

	// Company B is unaffected by A's token
	if err := s.Crawl(ctx, companyB.ID); err != nil {
		t.Errorf("Crawl(B) error = %v, want nil", err)
	}
}

func TestScheduler_SecondCrawlFetchesNothing(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()
	company := createTestCompany(t, repos, "https://ex.com")
	createSeedPage(t, repos, company.ID, "https://ex.com/")

	fetcher := &stubFetcher{}
	s := newTestScheduler(repos, fetcher)

	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("first Crawl() error = %v", err)
	}
	first := fetcher.fetchCount()

	if err := s.Crawl(ctx, company.ID); err != nil {
		t.Fatalf("second Crawl() error = %v", err)
	}
	if fetcher.fetchCount() != first {
		t.Errorf("second crawl fetched %d pages, want 0", fetcher.fetchCount()-first)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	repos := setupTestRepos(t)
	company := createTestCompany(t, repos, "https://ex.com")
	createSeedPage(t, repos, company.ID, "https://ex.com/")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestScheduler(repos, &stubFetcher{})
	if err := s.Crawl(ctx, company.ID); !errors.Is(err, context.Canceled) {
		t.Errorf("Crawl() error = %v, want context.Canceled", err)
	}
}
