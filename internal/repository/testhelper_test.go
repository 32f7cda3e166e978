package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/companyintel/companyintel-api/internal/database/migrations"
	"github.com/companyintel/companyintel-api/internal/models"
)

// setupTestDB creates an in-memory SQLite database for testing.
// It runs migrations and returns a database connection that will be cleaned up
// when the test completes.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("libsql", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := migrations.Run(db, nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

// setupTestRepos creates all repositories using a test database.
func setupTestRepos(t *testing.T) *Repositories {
	t.Helper()
	db := setupTestDB(t)
	return NewRepositories(db)
}

// createTestCompany inserts a company and returns it with its assigned id.
func createTestCompany(t *testing.T, repos *Repositories, name, domain string) *models.Company {
	t.Helper()
	company := &models.Company{
		Name:      name,
		Domain:    domain,
		CreatedAt: time.Now(),
	}
	if err := repos.Company.Create(context.Background(), company); err != nil {
		t.Fatalf("failed to create test company: %v", err)
	}
	return company
}

// createTestPage inserts a page and returns it with its assigned id.
func createTestPage(t *testing.T, repos *Repositories, companyID int64, url string, depth int) *models.Page {
	t.Helper()
	page := &models.Page{
		CompanyID: companyID,
		URL:       url,
		Depth:     depth,
		CreatedAt: time.Now(),
	}
	if err := repos.Page.Create(context.Background(), page); err != nil {
		t.Fatalf("failed to create test page: %v", err)
	}
	return page
}
