package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/companyintel/companyintel-api/internal/models"
)

// SQLiteCompanyRepository implements CompanyRepository for SQLite.
type SQLiteCompanyRepository struct {
	db *sql.DB
}

// NewSQLiteCompanyRepository creates a new SQLite company repository.
func NewSQLiteCompanyRepository(db *sql.DB) *SQLiteCompanyRepository {
	return &SQLiteCompanyRepository{db: db}
}

func (r *SQLiteCompanyRepository) Create(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (name, domain, pages_scraped_count, last_scraped_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		company.Name,
		company.Domain,
		company.PagesScrapedCount,
		nullTime(company.LastScrapedAt),
		company.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create company: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get company id: %w", err)
	}
	company.ID = id
	return nil
}

func (r *SQLiteCompanyRepository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	query := `
		SELECT id, name, domain, pages_scraped_count, last_scraped_at, created_at
		FROM companies WHERE id = ?
	`
	return scanCompany(r.db.QueryRowContext(ctx, query, id))
}

func (r *SQLiteCompanyRepository) List(ctx context.Context) ([]*models.Company, error) {
	query := `
		SELECT id, name, domain, pages_scraped_count, last_scraped_at, created_at
		FROM companies ORDER BY name ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	var companies []*models.Company
	for rows.Next() {
		company, err := scanCompanyFromRows(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

func (r *SQLiteCompanyRepository) UpdateCrawlStats(ctx context.Context, id int64, pagesScraped int, scrapedAt time.Time) error {
	query := `
		UPDATE companies
		SET pages_scraped_count = pages_scraped_count + ?, last_scraped_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, pagesScraped, scrapedAt.Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update crawl stats: %w", err)
	}
	return nil
}

func (r *SQLiteCompanyRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	return nil
}

func scanCompany(row *sql.Row) (*models.Company, error) {
	var c models.Company
	var createdAt string
	var lastScrapedAt sql.NullString

	err := row.Scan(&c.ID, &c.Name, &c.Domain, &c.PagesScrapedCount, &lastScrapedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}

	c.CreatedAt = parseTime(createdAt)
	c.LastScrapedAt = parseNullTime(lastScrapedAt)
	return &c, nil
}

func scanCompanyFromRows(rows *sql.Rows) (*models.Company, error) {
	var c models.Company
	var createdAt string
	var lastScrapedAt sql.NullString

	if err := rows.Scan(&c.ID, &c.Name, &c.Domain, &c.PagesScrapedCount, &lastScrapedAt, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan company: %w", err)
	}

	c.CreatedAt = parseTime(createdAt)
	c.LastScrapedAt = parseNullTime(lastScrapedAt)
	return &c, nil
}
