// Package models defines the domain models for the application.
// Companies, pages, and insights use integer keys assigned by the database;
// crawl jobs use ULIDs so they sort by creation time.
package models

import (
	"time"
)

// Company is a crawl and insight target, created once per crawl initiation.
// Deleting a company cascades to its pages, insights, and crawl jobs.
type Company struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Domain            string     `json:"domain"` // Origin URL, e.g. "https://example.com"
	PagesScrapedCount int        `json:"pages_scraped_count"`
	LastScrapedAt     *time.Time `json:"last_scraped_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Page is one crawl unit belonging to a company.
// (company_id, url) is unique: rediscovering a known URL is a no-op.
//
// A page with a nil CrawlDate is pending. Setting CrawlDate marks the crawl
// attempt as completed, success or failure, and the page is never retried.
type Page struct {
	ID         int64      `json:"id"`
	CompanyID  int64      `json:"company_id"`
	URL        string     `json:"url"`
	Depth      int        `json:"depth"` // 0 = seed page, 1 = discovered from the seed
	Title      string     `json:"title,omitempty"`
	RawHTML    string     `json:"raw_html,omitempty"`
	ParsedText string     `json:"parsed_text,omitempty"`
	CrawlDate  *time.Time `json:"crawl_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Fetched reports whether a crawl attempt has completed for this page.
func (p *Page) Fetched() bool {
	return p.CrawlDate != nil
}

// ServiceOffering is one product or service extracted from a company's site.
type ServiceOffering struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// CompanyInsight holds the extracted business fields for a company.
// At most one row exists per company; each extraction run fully replaces it.
type CompanyInsight struct {
	ID                 int64             `json:"id"`
	CompanyID          int64             `json:"company_id"`
	Tagline            *string           `json:"tagline"`
	Mission            *string           `json:"mission"`
	TargetAudience     *string           `json:"target_audience"`
	ServiceOfferings   []ServiceOffering `json:"service_offerings"`
	KnownCustomers     []string          `json:"known_customers"`
	KeyDifferentiators []string          `json:"key_differentiators"`
	TechnologyOverview *string           `json:"technology_overview"`
	Partnerships       []string          `json:"partnerships"`
	PricingOverview    *string           `json:"pricing_overview"`
	OfferingLabels     []string          `json:"offering_labels"`
	XURL               *string           `json:"x_url"`
	LinkedInURL        *string           `json:"linkedin_url"`

	// Run metadata, replaced on every extraction run.
	ProcessedAt   time.Time `json:"processed_at"`
	LLMModelUsed  string    `json:"llm_model_used"`
	SourcePageIDs []int64   `json:"source_page_ids"`
}

// CrawlJobStatus represents the status of a crawl job.
type CrawlJobStatus string

const (
	CrawlJobStatusPending   CrawlJobStatus = "pending"
	CrawlJobStatusRunning   CrawlJobStatus = "running"
	CrawlJobStatusCompleted CrawlJobStatus = "completed"
	CrawlJobStatusFailed    CrawlJobStatus = "failed"
)

// CrawlJob is a queued crawl for one company. start-crawl enqueues a job and
// returns; the background worker claims it and drives the scheduler.
type CrawlJob struct {
	ID           string         `json:"id"` // ULID
	CompanyID    int64          `json:"company_id"`
	Status       CrawlJobStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
