package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/companyintel/companyintel-api/internal/insights"
	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
)

// ErrNoPages is returned when a company has no crawled pages to extract from.
var ErrNoPages = errors.New("no crawled pages for company")

// InsightService runs the extraction pipeline: prioritize crawled pages,
// build the prompt, call the model, parse the response, and upsert the
// resulting insight row. Any failure before the upsert leaves the prior
// insight row untouched.
type InsightService struct {
	companies repository.CompanyRepository
	pages     repository.PageRepository
	insights  repository.InsightRepository
	llm       LLMCaller
	parser    insights.ResponseParser
	logger    *slog.Logger
}

// NewInsightService creates a new insight service.
func NewInsightService(
	repos *repository.Repositories,
	llm LLMCaller,
	parser insights.ResponseParser,
	logger *slog.Logger,
) *InsightService {
	if parser == nil {
		parser = insights.NewBraceExtractionParser()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightService{
		companies: repos.Company,
		pages:     repos.Page,
		insights:  repos.Insight,
		llm:       llm,
		parser:    parser,
		logger:    logger.With("component", "insight_service"),
	}
}

// ProcessInsights runs one extraction for the company and returns the
// upserted insight.
func (s *InsightService) ProcessInsights(ctx context.Context, companyID int64) (*models.CompanyInsight, error) {
	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load company: %w", err)
	}
	if company == nil {
		return nil, ErrNoPages
	}

	pages, err := s.pages.GetRecentCrawled(ctx, companyID, insights.FetchWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load crawled pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}

	ranked := insights.RankPages(pages, insights.MaxPagesToProcess)
	prompt, sourcePageIDs := insights.BuildPrompt(ranked)

	s.logger.Info("extraction started",
		"company_id", companyID,
		"pages", len(ranked),
		"prompt_length", len(prompt),
	)

	result, err := s.llm.Call(ctx, prompt, LLMCallOptions{JSONMode: true})
	if err != nil {
		return nil, err
	}

	fields, err := s.parser.Parse(result.Content)
	if err != nil {
		var schemaErr *insights.SchemaError
		if errors.As(err, &schemaErr) {
			s.logger.Error("model response failed parsing",
				"company_id", companyID,
				"reason", schemaErr.Reason,
				"raw_response", schemaErr.Raw,
			)
		}
		return nil, err
	}

	insight, err := buildInsight(companyID, fields)
	if err != nil {
		s.logger.Error("model response failed field mapping",
			"company_id", companyID,
			"error", err,
			"raw_response", result.Content,
		)
		return nil, err
	}
	insight.ProcessedAt = time.Now()
	insight.LLMModelUsed = s.llm.Model()
	insight.SourcePageIDs = sourcePageIDs

	if err := s.insights.Upsert(ctx, insight); err != nil {
		return nil, fmt.Errorf("failed to upsert insight: %w", err)
	}

	s.logger.Info("extraction completed",
		"company_id", companyID,
		"model", insight.LLMModelUsed,
		"input_tokens", result.InputTokens,
		"output_tokens", result.OutputTokens,
	)
	return insight, nil
}

// GetInsight returns the stored insight for a company, or nil when none
// exists.
func (s *InsightService) GetInsight(ctx context.Context, companyID int64) (*models.CompanyInsight, error) {
	return s.insights.GetByCompanyID(ctx, companyID)
}

// buildInsight maps parsed response fields onto the insight model. The field
// names in the model's JSON tags match the prompt schema, so a marshal
// round-trip does the mapping; a type mismatch is a schema violation.
func buildInsight(companyID int64, fields map[string]any) (*models.CompanyInsight, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to re-marshal parsed fields: %w", err)
	}

	var insight models.CompanyInsight
	if err := json.Unmarshal(raw, &insight); err != nil {
		return nil, &insights.SchemaError{
			Reason: fmt.Sprintf("fields do not match schema: %v", err),
			Raw:    string(raw),
		}
	}

	insight.ID = 0
	insight.CompanyID = companyID
	insight.OfferingLabels = filterOfferingLabels(insight.OfferingLabels)
	return &insight, nil
}

// filterOfferingLabels drops labels outside the controlled vocabulary and
// duplicates, preserving order.
func filterOfferingLabels(labels []string) []string {
	allowed := make(map[string]bool, len(insights.OfferingLabels))
	for _, l := range insights.OfferingLabels {
		allowed[l] = true
	}

	var out []string
	seen := make(map[string]bool)
	for _, l := range labels {
		if !allowed[l] || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
