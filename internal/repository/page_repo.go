package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/companyintel/companyintel-api/internal/models"
)

// SQLitePageRepository implements PageRepository for SQLite.
type SQLitePageRepository struct {
	db *sql.DB
}

// NewSQLitePageRepository creates a new SQLite page repository.
func NewSQLitePageRepository(db *sql.DB) *SQLitePageRepository {
	return &SQLitePageRepository{db: db}
}

func (r *SQLitePageRepository) Create(ctx context.Context, page *models.Page) error {
	query := `
		INSERT INTO pages (company_id, url, depth, title, raw_html, parsed_text, crawl_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		page.CompanyID,
		page.URL,
		page.Depth,
		nullString(page.Title),
		nullString(page.RawHTML),
		nullString(page.ParsedText),
		nullTime(page.CrawlDate),
		page.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("page %q already exists for company %d: %w", page.URL, page.CompanyID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create page: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get page id: %w", err)
	}
	page.ID = id
	return nil
}

func (r *SQLitePageRepository) GetByID(ctx context.Context, id int64) (*models.Page, error) {
	query := pageSelect + ` WHERE id = ?`
	return scanPage(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLitePageRepository) NextPending(ctx context.Context, companyID int64) (*models.Page, error) {
	// Any pending page is eligible; no ordering guarantee beyond existence.
	query := pageSelect + ` WHERE company_id = ? AND crawl_date IS NULL LIMIT 1`
	return scanPage(r.db.QueryRowContext(ctx, query, companyID))
}

func (r *SQLitePageRepository) MarkFetched(ctx context.Context, id int64, rawHTML, parsedText, title string, crawlDate time.Time) error {
	query := `
		UPDATE pages SET raw_html = ?, parsed_text = ?, title = ?, crawl_date = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		nullString(rawHTML),
		nullString(parsedText),
		nullString(title),
		crawlDate.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark page fetched: %w", err)
	}
	return nil
}

func (r *SQLitePageRepository) MarkAttempted(ctx context.Context, id int64, crawlDate time.Time) error {
	query := `UPDATE pages SET crawl_date = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, crawlDate.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to mark page attempted: %w", err)
	}
	return nil
}

func (r *SQLitePageRepository) GetRecentCrawled(ctx context.Context, companyID int64, limit int) ([]*models.Page, error) {
	query := pageSelect + `
		WHERE company_id = ? AND crawl_date IS NOT NULL
		ORDER BY crawl_date DESC, id DESC
		LIMIT ?
	`
	return r.queryPages(ctx, query, companyID, limit)
}

func (r *SQLitePageRepository) ListByCompany(ctx context.Context, companyID int64) ([]*models.Page, error) {
	query := pageSelect + ` WHERE company_id = ? ORDER BY created_at DESC, id DESC`
	return r.queryPages(ctx, query, companyID)
}

const pageSelect = `
	SELECT id, company_id, url, depth, title, raw_html, parsed_text, crawl_date, created_at
	FROM pages`

func (r *SQLitePageRepository) queryPages(ctx context.Context, query string, args ...any) ([]*models.Page, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	var pages []*models.Page
	for rows.Next() {
		page, err := scanPageFromRows(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func scanPage(row *sql.Row) (*models.Page, error) {
	var p models.Page
	var title, rawHTML, parsedText, crawlDate sql.NullString
	var createdAt string

	err := row.Scan(&p.ID, &p.CompanyID, &p.URL, &p.Depth, &title, &rawHTML, &parsedText, &crawlDate, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}

	p.Title = title.String
	p.RawHTML = rawHTML.String
	p.ParsedText = parsedText.String
	p.CrawlDate = parseNullTime(crawlDate)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func scanPageFromRows(rows *sql.Rows) (*models.Page, error) {
	var p models.Page
	var title, rawHTML, parsedText, crawlDate sql.NullString
	var createdAt string

	if err := rows.Scan(&p.ID, &p.CompanyID, &p.URL, &p.Depth, &title, &rawHTML, &parsedText, &crawlDate, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan page: %w", err)
	}

	p.Title = title.String
	p.RawHTML = rawHTML.String
	p.ParsedText = parsedText.String
	p.CrawlDate = parseNullTime(crawlDate)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}
