package service

import (
	"log/slog"

	"github.com/companyintel/companyintel-api/internal/config"
	"github.com/companyintel/companyintel-api/internal/insights"
	"github.com/companyintel/companyintel-api/internal/repository"
)

// Services holds all business logic services.
type Services struct {
	Crawl   *CrawlService
	Insight *InsightService
	Storage *StorageService
	LLM     *LLMClient
}

// NewServices creates all services.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	storage, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, err
	}

	llm := NewLLMClient(cfg, logger)

	return &Services{
		Crawl:   NewCrawlService(repos, logger),
		Insight: NewInsightService(repos, llm, insights.NewBraceExtractionParser(), logger),
		Storage: storage,
		LLM:     llm,
	}, nil
}
