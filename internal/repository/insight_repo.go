package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/companyintel/companyintel-api/internal/models"
)

// SQLiteInsightRepository implements InsightRepository for SQLite.
type SQLiteInsightRepository struct {
	db *sql.DB
}

// NewSQLiteInsightRepository creates a new SQLite insight repository.
func NewSQLiteInsightRepository(db *sql.DB) *SQLiteInsightRepository {
	return &SQLiteInsightRepository{db: db}
}

// Upsert inserts or fully replaces the insight row for a company. Every field
// is overwritten so a rerun cannot leave stale values from a prior extraction.
func (r *SQLiteInsightRepository) Upsert(ctx context.Context, insight *models.CompanyInsight) error {
	query := `
		INSERT INTO company_insights (
			company_id, tagline, mission, target_audience, service_offerings,
			known_customers, key_differentiators, technology_overview, partnerships,
			pricing_overview, offering_labels, x_url, linkedin_url,
			processed_at, llm_model_used, source_page_ids
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(company_id) DO UPDATE SET
			tagline = excluded.tagline,
			mission = excluded.mission,
			target_audience = excluded.target_audience,
			service_offerings = excluded.service_offerings,
			known_customers = excluded.known_customers,
			key_differentiators = excluded.key_differentiators,
			technology_overview = excluded.technology_overview,
			partnerships = excluded.partnerships,
			pricing_overview = excluded.pricing_overview,
			offering_labels = excluded.offering_labels,
			x_url = excluded.x_url,
			linkedin_url = excluded.linkedin_url,
			processed_at = excluded.processed_at,
			llm_model_used = excluded.llm_model_used,
			source_page_ids = excluded.source_page_ids
	`
	_, err := r.db.ExecContext(ctx, query,
		insight.CompanyID,
		nullStringPtr(insight.Tagline),
		nullStringPtr(insight.Mission),
		nullStringPtr(insight.TargetAudience),
		jsonColumn(insight.ServiceOfferings),
		jsonColumn(insight.KnownCustomers),
		jsonColumn(insight.KeyDifferentiators),
		nullStringPtr(insight.TechnologyOverview),
		jsonColumn(insight.Partnerships),
		nullStringPtr(insight.PricingOverview),
		jsonColumn(insight.OfferingLabels),
		nullStringPtr(insight.XURL),
		nullStringPtr(insight.LinkedInURL),
		insight.ProcessedAt.Format(time.RFC3339),
		insight.LLMModelUsed,
		jsonColumn(insight.SourcePageIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert insight: %w", err)
	}
	return nil
}

func (r *SQLiteInsightRepository) GetByCompanyID(ctx context.Context, companyID int64) (*models.CompanyInsight, error) {
	query := `
		SELECT id, company_id, tagline, mission, target_audience, service_offerings,
			known_customers, key_differentiators, technology_overview, partnerships,
			pricing_overview, offering_labels, x_url, linkedin_url,
			processed_at, llm_model_used, source_page_ids
		FROM company_insights WHERE company_id = ?
	`
	row := r.db.QueryRowContext(ctx, query, companyID)

	var in models.CompanyInsight
	var tagline, mission, targetAudience, technologyOverview, pricingOverview, xURL, linkedinURL sql.NullString
	var serviceOfferings, knownCustomers, keyDifferentiators, partnerships, offeringLabels, sourcePageIDs sql.NullString
	var processedAt string

	err := row.Scan(
		&in.ID, &in.CompanyID, &tagline, &mission, &targetAudience, &serviceOfferings,
		&knownCustomers, &keyDifferentiators, &technologyOverview, &partnerships,
		&pricingOverview, &offeringLabels, &xURL, &linkedinURL,
		&processedAt, &in.LLMModelUsed, &sourcePageIDs,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan insight: %w", err)
	}

	in.Tagline = stringPtr(tagline)
	in.Mission = stringPtr(mission)
	in.TargetAudience = stringPtr(targetAudience)
	in.TechnologyOverview = stringPtr(technologyOverview)
	in.PricingOverview = stringPtr(pricingOverview)
	in.XURL = stringPtr(xURL)
	in.LinkedInURL = stringPtr(linkedinURL)
	scanJSON(serviceOfferings, &in.ServiceOfferings)
	scanJSON(knownCustomers, &in.KnownCustomers)
	scanJSON(keyDifferentiators, &in.KeyDifferentiators)
	scanJSON(partnerships, &in.Partnerships)
	scanJSON(offeringLabels, &in.OfferingLabels)
	scanJSON(sourcePageIDs, &in.SourcePageIDs)
	in.ProcessedAt = parseTime(processedAt)
	return &in, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
