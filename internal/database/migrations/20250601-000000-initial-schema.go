package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250601-000000",
		Description: "Initial schema",
		Up: []string{
			// Companies - crawl and insight targets
			`CREATE TABLE IF NOT EXISTS companies (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL,
				domain TEXT NOT NULL,
				pages_scraped_count INTEGER NOT NULL DEFAULT 0,
				last_scraped_at TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name)`,

			// Pages - one row per crawl unit
			// crawl_date NULL means pending; set once when the attempt completes
			`CREATE TABLE IF NOT EXISTS pages (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				url TEXT NOT NULL,
				depth INTEGER NOT NULL DEFAULT 0,
				title TEXT,
				raw_html TEXT,
				parsed_text TEXT,
				crawl_date TEXT,
				created_at TEXT NOT NULL,
				UNIQUE(company_id, url)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_pages_company_id ON pages(company_id)`,
			`CREATE INDEX IF NOT EXISTS idx_pages_pending ON pages(company_id, crawl_date)`,

			// Company insights - one row per company, fully replaced on each run
			`CREATE TABLE IF NOT EXISTS company_insights (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				company_id INTEGER UNIQUE NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				tagline TEXT,
				mission TEXT,
				target_audience TEXT,
				service_offerings TEXT,
				known_customers TEXT,
				key_differentiators TEXT,
				technology_overview TEXT,
				partnerships TEXT,
				pricing_overview TEXT,
				offering_labels TEXT,
				x_url TEXT,
				linkedin_url TEXT,
				processed_at TEXT NOT NULL,
				llm_model_used TEXT NOT NULL,
				source_page_ids TEXT
			)`,

			// Crawl jobs - queue entries claimed by the background worker
			`CREATE TABLE IF NOT EXISTS crawl_jobs (
				id TEXT PRIMARY KEY,
				company_id INTEGER NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
				status TEXT NOT NULL DEFAULT 'pending',
				error_message TEXT,
				started_at TEXT,
				completed_at TEXT,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_crawl_jobs_status ON crawl_jobs(status)`,
		},
	})
}
