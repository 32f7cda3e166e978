package handlers

import (
	"context"
	"log/slog"

	"github.com/danielgtaylor/huma/v2"

	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
	"github.com/companyintel/companyintel-api/internal/service"
)

// CompanyHandler handles company and page listing requests.
type CompanyHandler struct {
	companies repository.CompanyRepository
	pages     repository.PageRepository
	storage   *service.StorageService
}

// NewCompanyHandler creates a new company handler.
func NewCompanyHandler(repos *repository.Repositories, storage *service.StorageService) *CompanyHandler {
	return &CompanyHandler{
		companies: repos.Company,
		pages:     repos.Page,
		storage:   storage,
	}
}

// ListCompaniesOutput is the list of registered companies.
type ListCompaniesOutput struct {
	Body struct {
		Companies []*models.Company `json:"companies"`
	}
}

// ListCompanies returns all registered companies ordered by name.
func (h *CompanyHandler) ListCompanies(ctx context.Context, input *struct{}) (*ListCompaniesOutput, error) {
	companies, err := h.companies.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list companies", err)
	}

	out := &ListCompaniesOutput{}
	out.Body.Companies = companies
	if out.Body.Companies == nil {
		out.Body.Companies = []*models.Company{}
	}
	return out, nil
}

// GetCompanyInput identifies one company.
type GetCompanyInput struct {
	ID int64 `path:"id" doc:"Company ID"`
}

// GetCompanyOutput is one company.
type GetCompanyOutput struct {
	Body struct {
		Company *models.Company `json:"company"`
	}
}

// GetCompany returns one company by id.
func (h *CompanyHandler) GetCompany(ctx context.Context, input *GetCompanyInput) (*GetCompanyOutput, error) {
	company, err := h.companies.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load company", err)
	}
	if company == nil {
		return nil, huma.Error404NotFound("company not found")
	}

	out := &GetCompanyOutput{}
	out.Body.Company = company
	return out, nil
}

// ListPagesInput identifies the company whose pages to list.
type ListPagesInput struct {
	ID int64 `path:"id" doc:"Company ID"`
}

// PageSummary is a page without its raw HTML and parsed text, which can run
// to hundreds of kilobytes each.
type PageSummary struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Depth     int    `json:"depth"`
	Title     string `json:"title,omitempty"`
	Fetched   bool   `json:"fetched"`
	CrawlDate string `json:"crawl_date,omitempty"`
}

// ListPagesOutput is the list of a company's pages.
type ListPagesOutput struct {
	Body struct {
		Pages []PageSummary `json:"pages"`
	}
}

// ListPages returns all pages for a company, newest first.
func (h *CompanyHandler) ListPages(ctx context.Context, input *ListPagesInput) (*ListPagesOutput, error) {
	pages, err := h.pages.ListByCompany(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list pages", err)
	}

	out := &ListPagesOutput{}
	out.Body.Pages = make([]PageSummary, 0, len(pages))
	for _, p := range pages {
		summary := PageSummary{
			ID:      p.ID,
			URL:     p.URL,
			Depth:   p.Depth,
			Title:   p.Title,
			Fetched: p.Fetched() && p.RawHTML != "",
		}
		if p.CrawlDate != nil {
			summary.CrawlDate = p.CrawlDate.Format(timeFormat)
		}
		out.Body.Pages = append(out.Body.Pages, summary)
	}
	return out, nil
}

// GetPageArchiveInput identifies one archived page.
type GetPageArchiveInput struct {
	ID     int64 `path:"id" doc:"Company ID"`
	PageID int64 `path:"pageId" doc:"Page ID"`
}

// GetPageArchiveOutput is the archived raw HTML of one page.
type GetPageArchiveOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// GetPageArchive serves the archived raw HTML for one crawled page.
func (h *CompanyHandler) GetPageArchive(ctx context.Context, input *GetPageArchiveInput) (*GetPageArchiveOutput, error) {
	if h.storage == nil || !h.storage.IsEnabled() {
		return nil, huma.Error404NotFound("page archive is not enabled")
	}

	page, err := h.pages.GetByID(ctx, input.PageID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load page", err)
	}
	if page == nil || page.CompanyID != input.ID {
		return nil, huma.Error404NotFound("page not found")
	}

	html, err := h.storage.GetArchivedPage(ctx, input.ID, input.PageID)
	if err != nil {
		return nil, huma.Error404NotFound("no archived copy for page")
	}

	return &GetPageArchiveOutput{
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
	}, nil
}

// DeleteCompanyInput identifies the company to delete.
type DeleteCompanyInput struct {
	ID int64 `path:"id" doc:"Company ID"`
}

// DeleteCompanyOutput acknowledges the deletion.
type DeleteCompanyOutput struct {
	Body struct {
		Success              bool `json:"success"`
		DeletedArchivedPages int  `json:"deleted_archived_pages"`
	}
}

// DeleteCompany removes a company with its pages, insights, and crawl jobs,
// and clears its archived HTML.
func (h *CompanyHandler) DeleteCompany(ctx context.Context, input *DeleteCompanyInput) (*DeleteCompanyOutput, error) {
	company, err := h.companies.GetByID(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load company", err)
	}
	if company == nil {
		return nil, huma.Error404NotFound("company not found")
	}

	deleted := 0
	if h.storage != nil {
		deleted, err = h.storage.DeleteCompanyArchive(ctx, input.ID)
		if err != nil {
			// Database rows still go; orphaned objects can be cleared later
			slog.Warn("failed to clear company archive", "company_id", input.ID, "error", err)
		}
	}

	if err := h.companies.Delete(ctx, input.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to delete company", err)
	}

	out := &DeleteCompanyOutput{}
	out.Body.Success = true
	out.Body.DeletedArchivedPages = deleted
	return out, nil
}
