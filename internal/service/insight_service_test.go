package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/companyintel/companyintel-api/internal/insights"
	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
)

// stubLLM returns a canned completion and records the prompt it was given.
type stubLLM struct {
	response string
	err      error
	prompt   string
}

func (s *stubLLM) Call(ctx context.Context, prompt string, opts LLMCallOptions) (*LLMCallResult, error) {
	s.prompt = prompt
	if s.err != nil {
		return nil, s.err
	}
	return &LLMCallResult{Content: s.response, FinishReason: "stop"}, nil
}

func (s *stubLLM) Model() string { return "stub-model" }

func seedCrawledCompany(t *testing.T, repos *repository.Repositories) *models.Company {
	t.Helper()
	ctx := context.Background()

	company := &models.Company{Name: "Acme", Domain: "https://acme.com", CreatedAt: time.Now()}
	if err := repos.Company.Create(ctx, company); err != nil {
		t.Fatalf("failed to create company: %v", err)
	}

	for _, url := range []string{"https://acme.com/", "https://acme.com/pricing"} {
		page := &models.Page{CompanyID: company.ID, URL: url, Depth: 1, CreatedAt: time.Now()}
		if err := repos.Page.Create(ctx, page); err != nil {
			t.Fatalf("failed to create page: %v", err)
		}
		if err := repos.Page.MarkFetched(ctx, page.ID, "<html></html>", "text for "+url, "t", time.Now()); err != nil {
			t.Fatalf("failed to mark fetched: %v", err)
		}
	}
	return company
}

func TestInsightService_ProcessInsights(t *testing.T) {
	repos := setupTestRepos(t)
	company := seedCrawledCompany(t, repos)

	llm := &stubLLM{response: "Here it is:\n```json\n" + `{
		"tagline": "Widgets for all",
		"mission": null,
		"service_offerings": [{"name": "Widget API", "description": "Hosted", "tags": ["api"]}],
		"known_customers": ["BigCo"],
		"offering_labels": ["Hosted Inference", "Not A Label", "Hosted Inference"],
		"x_url": "https://x.com/acme"
	}` + "\n```"}

	svc := NewInsightService(repos, llm, insights.NewBraceExtractionParser(), nil)
	insight, err := svc.ProcessInsights(context.Background(), company.ID)
	if err != nil {
		t.Fatalf("ProcessInsights() error = %v", err)
	}

	if insight.Tagline == nil || *insight.Tagline != "Widgets for all" {
		t.Errorf("Tagline = %v", insight.Tagline)
	}
	if insight.Mission != nil {
		t.Errorf("Mission = %v, want nil", insight.Mission)
	}
	if len(insight.ServiceOfferings) != 1 || insight.ServiceOfferings[0].Name != "Widget API" {
		t.Errorf("ServiceOfferings = %v", insight.ServiceOfferings)
	}
	// Out-of-vocabulary and duplicate labels are dropped
	if len(insight.OfferingLabels) != 1 || insight.OfferingLabels[0] != "Hosted Inference" {
		t.Errorf("OfferingLabels = %v, want [Hosted Inference]", insight.OfferingLabels)
	}
	if insight.LLMModelUsed != "stub-model" {
		t.Errorf("LLMModelUsed = %s", insight.LLMModelUsed)
	}
	if len(insight.SourcePageIDs) != 2 {
		t.Errorf("SourcePageIDs = %v, want both crawled pages", insight.SourcePageIDs)
	}

	// The prompt carried both pages' text
	for _, want := range []string{"text for https://acme.com/", "text for https://acme.com/pricing"} {
		if !strings.Contains(llm.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// The row is persisted
	stored, err := repos.Insight.GetByCompanyID(context.Background(), company.ID)
	if err != nil {
		t.Fatalf("GetByCompanyID() error = %v", err)
	}
	if stored == nil || stored.Tagline == nil || *stored.Tagline != "Widgets for all" {
		t.Errorf("stored insight = %v", stored)
	}
}

func TestInsightService_ProcessInsights_NoPages(t *testing.T) {
	repos := setupTestRepos(t)
	ctx := context.Background()

	company := &models.Company{Name: "Acme", Domain: "https://acme.com", CreatedAt: time.Now()}
	if err := repos.Company.Create(ctx, company); err != nil {
		t.Fatalf("failed to create company: %v", err)
	}
	// One page exists but was never crawled
	page := &models.Page{CompanyID: company.ID, URL: "https://acme.com/", CreatedAt: time.Now()}
	if err := repos.Page.Create(ctx, page); err != nil {
		t.Fatalf("failed to create page: %v", err)
	}

	svc := NewInsightService(repos, &stubLLM{response: "{}"}, nil, nil)
	if _, err := svc.ProcessInsights(ctx, company.ID); !errors.Is(err, ErrNoPages) {
		t.Errorf("ProcessInsights() error = %v, want ErrNoPages", err)
	}
}

func TestInsightService_ProcessInsights_UnknownCompany(t *testing.T) {
	repos := setupTestRepos(t)

	svc := NewInsightService(repos, &stubLLM{response: "{}"}, nil, nil)
	if _, err := svc.ProcessInsights(context.Background(), 9999); !errors.Is(err, ErrNoPages) {
		t.Errorf("ProcessInsights() error = %v, want ErrNoPages", err)
	}
}

func TestInsightService_ProcessInsights_SchemaErrorLeavesNoRow(t *testing.T) {
	repos := setupTestRepos(t)
	company := seedCrawledCompany(t, repos)

	svc := NewInsightService(repos, &stubLLM{response: "I could not find anything useful."}, nil, nil)
	_, err := svc.ProcessInsights(context.Background(), company.ID)

	var schemaErr *insights.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("error = %v, want *SchemaError", err)
	}

	stored, err := repos.Insight.GetByCompanyID(context.Background(), company.ID)
	if err != nil {
		t.Fatalf("GetByCompanyID() error = %v", err)
	}
	if stored != nil {
		t.Error("schema failure must not write a partial insight row")
	}
}

func TestInsightService_ProcessInsights_ModelError(t *testing.T) {
	repos := setupTestRepos(t)
	company := seedCrawledCompany(t, repos)

	wantErr := &ModelError{Provider: "openai", StatusCode: 500, Err: errors.New("boom")}
	svc := NewInsightService(repos, &stubLLM{err: wantErr}, nil, nil)

	_, err := svc.ProcessInsights(context.Background(), company.ID)
	var modelErr *ModelError
	if !errors.As(err, &modelErr) {
		t.Fatalf("error = %v, want *ModelError", err)
	}
}
