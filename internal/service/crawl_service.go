package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
)

// ErrInvalidURL is returned when the supplied main URL is missing or cannot
// be parsed into an http(s) origin.
var ErrInvalidURL = errors.New("invalid main url")

// CrawlService registers companies and enqueues crawl jobs. The actual
// crawling runs in the background worker, so StartCrawl returns as soon as
// the seed page and job row exist.
type CrawlService struct {
	companies repository.CompanyRepository
	pages     repository.PageRepository
	jobs      repository.CrawlJobRepository
	logger    *slog.Logger
}

// NewCrawlService creates a new crawl service.
func NewCrawlService(repos *repository.Repositories, logger *slog.Logger) *CrawlService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrawlService{
		companies: repos.Company,
		pages:     repos.Page,
		jobs:      repos.CrawlJob,
		logger:    logger.With("component", "crawl_service"),
	}
}

// StartCrawlResult reports what StartCrawl created.
type StartCrawlResult struct {
	Company *models.Company
	Job     *models.CrawlJob
}

// StartCrawl registers a company for mainURL, seeds its depth-0 page, and
// enqueues a crawl job for the worker. A seed page that already exists for
// the company is reused, so repeated calls do not duplicate work.
func (s *CrawlService) StartCrawl(ctx context.Context, mainURL, companyName string) (*StartCrawlResult, error) {
	seedURL, origin, err := normalizeMainURL(mainURL)
	if err != nil {
		return nil, err
	}
	if companyName == "" {
		companyName = origin
	}

	company := &models.Company{
		Name:      companyName,
		Domain:    origin,
		CreatedAt: time.Now(),
	}
	if err := s.companies.Create(ctx, company); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	seed := &models.Page{
		CompanyID: company.ID,
		URL:       seedURL,
		Depth:     0,
		CreatedAt: time.Now(),
	}
	if err := s.pages.Create(ctx, seed); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("failed to create seed page: %w", err)
	}

	job := &models.CrawlJob{
		ID:        ulid.Make().String(),
		CompanyID: company.ID,
		Status:    models.CrawlJobStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue crawl job: %w", err)
	}

	s.logger.Info("crawl enqueued",
		"company_id", company.ID,
		"job_id", job.ID,
		"seed_url", seedURL,
	)

	return &StartCrawlResult{Company: company, Job: job}, nil
}

// GetJob returns one crawl job by id, or nil when it does not exist.
func (s *CrawlService) GetJob(ctx context.Context, jobID string) (*models.CrawlJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// normalizeMainURL validates mainURL and returns the seed URL plus its
// origin (scheme://host). A bare hostname gets an https scheme prepended.
func normalizeMainURL(mainURL string) (seedURL, origin string, err error) {
	mainURL = strings.TrimSpace(mainURL)
	if mainURL == "" {
		return "", "", ErrInvalidURL
	}
	if !strings.Contains(mainURL, "://") {
		mainURL = "https://" + mainURL
	}

	parsed, err := url.Parse(mainURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return "", "", ErrInvalidURL
	}

	return parsed.String(), parsed.Scheme + "://" + parsed.Host, nil
}
