// Package main is the entry point for the companyintel-api server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/companyintel/companyintel-api/internal/config"
	"github.com/companyintel/companyintel-api/internal/crawler"
	"github.com/companyintel/companyintel-api/internal/database"
	"github.com/companyintel/companyintel-api/internal/http/handlers"
	"github.com/companyintel/companyintel-api/internal/http/mw"
	"github.com/companyintel/companyintel-api/internal/logging"
	"github.com/companyintel/companyintel-api/internal/repository"
	"github.com/companyintel/companyintel-api/internal/service"
	"github.com/companyintel/companyintel-api/internal/version"
	"github.com/companyintel/companyintel-api/internal/worker"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting companyintel-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	// Crawl jobs left running by a previous server run never complete;
	// mark anything older than an hour failed
	staleCount, err := repos.CrawlJob.MarkStaleRunningFailed(context.Background(), 1*time.Hour)
	if err != nil {
		logger.Warn("failed to clean up stale crawl jobs", "error", err)
	} else if staleCount > 0 {
		logger.Info("cleaned up stale crawl jobs", "count", staleCount)
	}

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Crawl scheduler and its background worker
	fetcher := crawler.NewFetcher(cfg.FetchTimeout, cfg.UserAgent, logger)
	scheduler := crawler.NewScheduler(
		repos.Page,
		repos.Company,
		fetcher,
		services.Storage,
		cfg.CrawlDelay,
		logger,
	)
	crawlWorker := worker.New(
		repos.CrawlJob,
		scheduler,
		worker.Config{PollInterval: cfg.WorkerPollInterval},
		logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	crawlWorker.Start(ctx)

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit (1MB) - prevent large payload attacks
	router.Use(middleware.RequestSize(1 * 1024 * 1024))

	// Global rate limit by IP
	router.Use(httprate.LimitByIP(100, time.Minute))

	// Huma API config with OpenAPI docs
	humaConfig := huma.DefaultConfig("CompanyIntel API", v.Version)
	humaConfig.Info.Description = "Bounded website crawler and LLM-backed company insight extraction."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "Admin API key or externally issued session token.",
		},
	}
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("CompanyIntel API", v.Version)
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Public routes
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(db).Readyz)

	companyHandler := handlers.NewCompanyHandler(repos, services.Storage)
	insightHandler := handlers.NewInsightHandler(services.Insight)
	crawlHandler := handlers.NewCrawlHandler(services.Crawl)

	// Read routes
	huma.Get(api, "/api/v1/companies", companyHandler.ListCompanies)
	huma.Get(api, "/api/v1/companies/{id}", companyHandler.GetCompany)
	huma.Get(api, "/api/v1/companies/{id}/pages", companyHandler.ListPages)
	huma.Get(api, "/api/v1/companies/{id}/insights", insightHandler.GetInsights)
	huma.Get(api, "/api/v1/crawl-jobs/{id}", crawlHandler.GetCrawlJob)

	// Mutating routes (bearer auth when configured)
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(cfg))

		protectedConfig := huma.DefaultConfig("CompanyIntel API", v.Version)
		protectedConfig.DocsPath = ""
		protectedConfig.OpenAPIPath = ""
		protectedConfig.SchemasPath = ""
		protectedAPI := humachi.New(r, protectedConfig)

		huma.Post(protectedAPI, "/api/v1/start-crawl", crawlHandler.StartCrawl)
		huma.Post(protectedAPI, "/api/v1/companies/{id}/process-insights", insightHandler.ProcessInsights)
		huma.Get(protectedAPI, "/api/v1/companies/{id}/pages/{pageId}/archive", companyHandler.GetPageArchive)
		huma.Delete(protectedAPI, "/api/v1/companies/{id}", companyHandler.DeleteCompany)
	})

	if cfg.AuthEnabled() {
		logger.Info("bearer auth enabled for mutating routes")
	} else {
		logger.Warn("no auth configured - mutating routes are open")
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// process-insights waits on a model call, so the write timeout must
		// exceed the LLM timeout
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the worker first
		cancel()
		crawlWorker.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
