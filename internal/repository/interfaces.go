// Package repository defines repository interfaces for data access.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/companyintel/companyintel-api/internal/models"
)

// CompanyRepository defines methods for company data access.
type CompanyRepository interface {
	Create(ctx context.Context, company *models.Company) error
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	List(ctx context.Context) ([]*models.Company, error)
	// UpdateCrawlStats records crawl bookkeeping after a crawl loop finishes.
	UpdateCrawlStats(ctx context.Context, id int64, pagesScraped int, scrapedAt time.Time) error
	// Delete removes a company; pages, insights, and crawl jobs cascade.
	Delete(ctx context.Context, id int64) error
}

// PageRepository defines methods for page data access.
type PageRepository interface {
	// Create inserts a page. Inserting a URL that already exists for the
	// company returns an error wrapping ErrDuplicate.
	Create(ctx context.Context, page *models.Page) error
	GetByID(ctx context.Context, id int64) (*models.Page, error)
	// NextPending returns any page for the company with no crawl_date yet,
	// or nil if the crawl queue is empty.
	NextPending(ctx context.Context, companyID int64) (*models.Page, error)
	// MarkFetched stores the fetched content and completes the crawl attempt.
	MarkFetched(ctx context.Context, id int64, rawHTML, parsedText, title string, crawlDate time.Time) error
	// MarkAttempted completes a failed crawl attempt without content so the
	// page is never retried.
	MarkAttempted(ctx context.Context, id int64, crawlDate time.Time) error
	// GetRecentCrawled returns up to limit crawled pages ordered by
	// crawl_date descending.
	GetRecentCrawled(ctx context.Context, companyID int64, limit int) ([]*models.Page, error)
	// ListByCompany returns all pages for a company, newest first.
	ListByCompany(ctx context.Context, companyID int64) ([]*models.Page, error)
}

// InsightRepository defines methods for company insight data access.
type InsightRepository interface {
	// Upsert inserts the insight row or fully replaces the existing one,
	// keyed by company_id.
	Upsert(ctx context.Context, insight *models.CompanyInsight) error
	GetByCompanyID(ctx context.Context, companyID int64) (*models.CompanyInsight, error)
}

// CrawlJobRepository defines methods for crawl job queue access.
type CrawlJobRepository interface {
	Create(ctx context.Context, job *models.CrawlJob) error
	GetByID(ctx context.Context, id string) (*models.CrawlJob, error)
	// ClaimPending atomically claims the oldest pending job and returns it,
	// or nil if the queue is empty.
	ClaimPending(ctx context.Context) (*models.CrawlJob, error)
	MarkCompleted(ctx context.Context, id string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error
	// MarkStaleRunningFailed marks jobs running longer than maxAge as failed.
	// Returns the number of jobs marked.
	MarkStaleRunningFailed(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Repositories holds all repository implementations.
type Repositories struct {
	Company  CompanyRepository
	Page     PageRepository
	Insight  InsightRepository
	CrawlJob CrawlJobRepository
}

// NewRepositories creates all repositories backed by the given database.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Company:  NewSQLiteCompanyRepository(db),
		Page:     NewSQLitePageRepository(db),
		Insight:  NewSQLiteInsightRepository(db),
		CrawlJob: NewSQLiteCrawlJobRepository(db),
	}
}
