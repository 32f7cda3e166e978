// Package worker runs queued crawl jobs in the background.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/companyintel/companyintel-api/internal/crawler"
	"github.com/companyintel/companyintel-api/internal/models"
	"github.com/companyintel/companyintel-api/internal/repository"
)

// Worker polls for pending crawl jobs and drives the crawl scheduler.
//
// Concurrency stays at 1 by default: the scheduler already rejects
// overlapping crawls per company, and the politeness delay makes parallel
// claims pointless for a single-company queue.
type Worker struct {
	jobs         repository.CrawlJobRepository
	scheduler    *crawler.Scheduler
	pollInterval time.Duration
	concurrency  int
	stop         chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

// Config holds worker configuration.
type Config struct {
	PollInterval time.Duration
	Concurrency  int
}

// New creates a new worker.
func New(
	jobs repository.CrawlJobRepository,
	scheduler *crawler.Scheduler,
	cfg Config,
	logger *slog.Logger,
) *Worker {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:         jobs,
		scheduler:    scheduler,
		pollInterval: cfg.PollInterval,
		concurrency:  cfg.Concurrency,
		stop:         make(chan struct{}),
		logger:       logger.With("component", "worker"),
	}
}

// Start begins processing jobs.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting", "concurrency", w.concurrency, "poll_interval", w.pollInterval)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping")
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processNextJob(ctx, workerID)
		}
	}
}

func (w *Worker) processNextJob(ctx context.Context, workerID int) {
	job, err := w.jobs.ClaimPending(ctx)
	if err != nil {
		w.logger.Error("failed to claim job", "worker_id", workerID, "error", err)
		return
	}
	if job == nil {
		return // No pending jobs
	}

	w.logger.Info("processing crawl job",
		"worker_id", workerID,
		"job_id", job.ID,
		"company_id", job.CompanyID,
	)

	err = w.scheduler.Crawl(ctx, job.CompanyID)
	switch {
	case err == nil:
		w.completeJob(ctx, job)
	case errors.Is(err, crawler.ErrCrawlInProgress):
		// Another loop already covers this company; its pending pages
		// will be drained there.
		w.completeJob(ctx, job)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Shutdown mid-crawl: leave the job running so the stale-job
		// sweep marks it failed on next startup.
		w.logger.Warn("crawl interrupted by shutdown", "job_id", job.ID)
	default:
		w.failJob(ctx, job, err)
	}
}

func (w *Worker) completeJob(ctx context.Context, job *models.CrawlJob) {
	if err := w.jobs.MarkCompleted(ctx, job.ID, time.Now()); err != nil {
		w.logger.Error("failed to mark job completed", "job_id", job.ID, "error", err)
		return
	}
	w.logger.Info("crawl job completed", "job_id", job.ID, "company_id", job.CompanyID)
}

func (w *Worker) failJob(ctx context.Context, job *models.CrawlJob, cause error) {
	w.logger.Error("crawl job failed", "job_id", job.ID, "company_id", job.CompanyID, "error", cause)
	if err := w.jobs.MarkFailed(ctx, job.ID, cause.Error(), time.Now()); err != nil {
		w.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
}
