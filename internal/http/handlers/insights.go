package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/companyintel/companyintel-api/internal/insights"
	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/service"
)

// InsightHandler handles insight extraction and retrieval requests.
type InsightHandler struct {
	insightSvc *service.InsightService
}

// NewInsightHandler creates a new insight handler.
func NewInsightHandler(insightSvc *service.InsightService) *InsightHandler {
	return &InsightHandler{insightSvc: insightSvc}
}

// ProcessInsightsInput identifies the company to extract insights for.
type ProcessInsightsInput struct {
	ID int64 `path:"id" doc:"Company ID"`
}

// ProcessInsightsOutput is the result of an extraction run.
type ProcessInsightsOutput struct {
	Body struct {
		Success bool                   `json:"success"`
		Insight *models.CompanyInsight `json:"insight"`
	}
}

// ProcessInsights runs the extraction pipeline synchronously for one company
// and returns the upserted insight.
func (h *InsightHandler) ProcessInsights(ctx context.Context, input *ProcessInsightsInput) (*ProcessInsightsOutput, error) {
	insight, err := h.insightSvc.ProcessInsights(ctx, input.ID)
	if err != nil {
		var modelErr *service.ModelError
		var schemaErr *insights.SchemaError
		switch {
		case errors.Is(err, service.ErrNoPages):
			return nil, huma.Error404NotFound("company has no crawled pages")
		case errors.As(err, &modelErr):
			return nil, huma.Error500InternalServerError("model call failed")
		case errors.As(err, &schemaErr):
			return nil, huma.Error500InternalServerError("model response did not match the expected schema")
		default:
			return nil, huma.Error500InternalServerError("insight extraction failed", err)
		}
	}

	out := &ProcessInsightsOutput{}
	out.Body.Success = true
	out.Body.Insight = insight
	return out, nil
}

// GetInsightsInput identifies the company whose insight to fetch.
type GetInsightsInput struct {
	ID int64 `path:"id" doc:"Company ID"`
}

// GetInsightsOutput is a stored company insight.
type GetInsightsOutput struct {
	Body struct {
		Insight *models.CompanyInsight `json:"insight"`
	}
}

// GetInsights returns the stored insight for a company.
func (h *InsightHandler) GetInsights(ctx context.Context, input *GetInsightsInput) (*GetInsightsOutput, error) {
	insight, err := h.insightSvc.GetInsight(ctx, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load insight", err)
	}
	if insight == nil {
		return nil, huma.Error404NotFound("no insight for company")
	}

	out := &GetInsightsOutput{}
	out.Body.Insight = insight
	return out, nil
}
