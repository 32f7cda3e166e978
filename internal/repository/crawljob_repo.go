package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/companyintel/companyintel-api/internal/models"
)

// SQLiteCrawlJobRepository implements CrawlJobRepository for SQLite.
type SQLiteCrawlJobRepository struct {
	db *sql.DB
}

// NewSQLiteCrawlJobRepository creates a new SQLite crawl job repository.
func NewSQLiteCrawlJobRepository(db *sql.DB) *SQLiteCrawlJobRepository {
	return &SQLiteCrawlJobRepository{db: db}
}

func (r *SQLiteCrawlJobRepository) Create(ctx context.Context, job *models.CrawlJob) error {
	query := `
		INSERT INTO crawl_jobs (id, company_id, status, error_message, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.CompanyID,
		job.Status,
		nullString(job.ErrorMessage),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawl job: %w", err)
	}
	return nil
}

func (r *SQLiteCrawlJobRepository) GetByID(ctx context.Context, id string) (*models.CrawlJob, error) {
	query := crawlJobSelect + ` WHERE id = ?`
	return scanCrawlJob(r.db.QueryRowContext(ctx, query, id))
}

// ClaimPending atomically claims the oldest pending job using
// UPDATE ... RETURNING, reducing lock contention versus SELECT then UPDATE.
func (r *SQLiteCrawlJobRepository) ClaimPending(ctx context.Context) (*models.CrawlJob, error) {
	now := time.Now().Format(time.RFC3339)
	query := `
		UPDATE crawl_jobs
		SET status = 'running', started_at = ?
		WHERE id = (
			SELECT id FROM crawl_jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING id, company_id, status, error_message, started_at, completed_at, created_at
	`
	job, err := scanCrawlJob(r.db.QueryRowContext(ctx, query, now))
	if err != nil {
		return nil, fmt.Errorf("failed to claim crawl job: %w", err)
	}
	return job, nil
}

func (r *SQLiteCrawlJobRepository) MarkCompleted(ctx context.Context, id string, completedAt time.Time) error {
	query := `UPDATE crawl_jobs SET status = 'completed', completed_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, completedAt.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to mark crawl job completed: %w", err)
	}
	return nil
}

func (r *SQLiteCrawlJobRepository) MarkFailed(ctx context.Context, id string, errMsg string, completedAt time.Time) error {
	query := `UPDATE crawl_jobs SET status = 'failed', error_message = ?, completed_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, errMsg, completedAt.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to mark crawl job failed: %w", err)
	}
	return nil
}

func (r *SQLiteCrawlJobRepository) MarkStaleRunningFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Format(time.RFC3339)
	query := `
		UPDATE crawl_jobs
		SET status = 'failed', error_message = 'job stale: server restarted', completed_at = ?
		WHERE status = 'running' AND started_at < ?
	`
	result, err := r.db.ExecContext(ctx, query, time.Now().Format(time.RFC3339), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale jobs: %w", err)
	}
	return result.RowsAffected()
}

const crawlJobSelect = `
	SELECT id, company_id, status, error_message, started_at, completed_at, created_at
	FROM crawl_jobs`

func scanCrawlJob(row *sql.Row) (*models.CrawlJob, error) {
	var j models.CrawlJob
	var errMsg, startedAt, completedAt sql.NullString
	var createdAt string

	err := row.Scan(&j.ID, &j.CompanyID, &j.Status, &errMsg, &startedAt, &completedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	j.ErrorMessage = errMsg.String
	j.StartedAt = parseNullTime(startedAt)
	j.CompletedAt = parseNullTime(completedAt)
	j.CreatedAt = parseTime(createdAt)
	return &j, nil
}
