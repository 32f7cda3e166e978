package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/companyintel/companyintel-api/internal/service"
)

// CrawlHandler handles crawl initiation and job status requests.
type CrawlHandler struct {
	crawlSvc *service.CrawlService
}

// NewCrawlHandler creates a new crawl handler.
func NewCrawlHandler(crawlSvc *service.CrawlService) *CrawlHandler {
	return &CrawlHandler{crawlSvc: crawlSvc}
}

// StartCrawlInput is the request to start a crawl.
type StartCrawlInput struct {
	Body struct {
		MainURL     string `json:"main_url" required:"false" doc:"The company's website URL to crawl"`
		CompanyName string `json:"company_name,omitempty" required:"false" doc:"Display name for the company; defaults to the URL origin"`
	}
}

// StartCrawlOutput acknowledges an enqueued crawl.
type StartCrawlOutput struct {
	Body struct {
		CompanyID int64  `json:"company_id"`
		JobID     string `json:"job_id"`
		Status    string `json:"status"`
	}
}

// StartCrawl registers the company, seeds its crawl queue, and enqueues a
// background crawl job. The crawl itself runs in the worker; this returns
// as soon as the job row exists.
func (h *CrawlHandler) StartCrawl(ctx context.Context, input *StartCrawlInput) (*StartCrawlOutput, error) {
	// Validated here rather than via schema so a missing URL is a 400, not
	// a schema-validation 422.
	if input.Body.MainURL == "" {
		return nil, huma.Error400BadRequest("main_url is required")
	}

	result, err := h.crawlSvc.StartCrawl(ctx, input.Body.MainURL, input.Body.CompanyName)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			return nil, huma.Error400BadRequest("main_url is not a valid http(s) URL")
		}
		return nil, huma.Error500InternalServerError("failed to start crawl", err)
	}

	out := &StartCrawlOutput{}
	out.Body.CompanyID = result.Company.ID
	out.Body.JobID = result.Job.ID
	out.Body.Status = string(result.Job.Status)
	return out, nil
}

// GetCrawlJobInput identifies one crawl job.
type GetCrawlJobInput struct {
	ID string `path:"id" doc:"Crawl job ID"`
}

// GetCrawlJobOutput is one crawl job's status.
type GetCrawlJobOutput struct {
	Body struct {
		ID           string `json:"id"`
		CompanyID    int64  `json:"company_id"`
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message,omitempty"`
		StartedAt    string `json:"started_at,omitempty"`
		CompletedAt  string `json:"completed_at,omitempty"`
		CreatedAt    string `json:"created_at"`
	}
}

// GetCrawlJob returns the status of one crawl job.
func (h *CrawlHandler) GetCrawlJob(ctx context.Context, input *GetCrawlJobInput) (*GetCrawlJobOutput, error) {
	job, err := h.crawlSvc.GetJob(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load crawl job", err)
	}
	if job == nil {
		return nil, huma.Error404NotFound("crawl job not found")
	}

	out := &GetCrawlJobOutput{}
	out.Body.ID = job.ID
	out.Body.CompanyID = job.CompanyID
	out.Body.Status = string(job.Status)
	out.Body.ErrorMessage = job.ErrorMessage
	if job.StartedAt != nil {
		out.Body.StartedAt = job.StartedAt.Format(timeFormat)
	}
	if job.CompletedAt != nil {
		out.Body.CompletedAt = job.CompletedAt.Format(timeFormat)
	}
	out.Body.CreatedAt = job.CreatedAt.Format(timeFormat)
	return out, nil
}
