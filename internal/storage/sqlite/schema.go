package sqlite

import "fmt"

// schemaSQL defines the full database schema. All statements are
// idempotent so migrate can run on every startup.
const schemaSQL = `
-- Mining jobs
CREATE TABLE IF NOT EXISTS mining_jobs (
	id TEXT PRIMARY KEY,
	organizer_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	input TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT 'auto',
	site_profile TEXT NOT NULL DEFAULT '',
	config_json TEXT NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	progress REAL NOT NULL DEFAULT 0,
	total_pages INTEGER NOT NULL DEFAULT 0,
	processed_pages INTEGER NOT NULL DEFAULT 0,
	total_found INTEGER NOT NULL DEFAULT 0,
	total_emails_raw INTEGER NOT NULL DEFAULT 0,
	total_prospects_created INTEGER NOT NULL DEFAULT 0,
	stats_json TEXT NOT NULL DEFAULT '{}',
	error TEXT NOT NULL DEFAULT '',
	parent_job_id TEXT NOT NULL DEFAULT '',
	retry_job_id TEXT NOT NULL DEFAULT '',
	file_data BLOB,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_organizer ON mining_jobs(organizer_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON mining_jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON mining_jobs(created_at DESC);

-- Raw per-contact mining results. One row per (job, primary email);
-- email-less rows keep a NULL primary_email so they never collide.
CREATE TABLE IF NOT EXISTS mining_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	organizer_id TEXT NOT NULL DEFAULT '',
	source_url TEXT NOT NULL DEFAULT '',
	company_name TEXT NOT NULL DEFAULT '',
	contact_name TEXT NOT NULL DEFAULT '',
	job_title TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	country TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	address TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	emails_json TEXT NOT NULL DEFAULT '[]',
	primary_email TEXT,
	confidence INTEGER NOT NULL DEFAULT 0,
	raw TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_results_job_email
	ON mining_results(job_id, primary_email);
CREATE INDEX IF NOT EXISTS idx_results_organizer ON mining_results(organizer_id);

-- Canonical persons, unique per organizer and lowered email
CREATE TABLE IF NOT EXISTS persons (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	organizer_id TEXT NOT NULL,
	email TEXT NOT NULL,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_persons_identity
	ON persons(organizer_id, lower(email));

-- Affiliations. Deduplicated per (organizer, person, lowered company)
-- only when a company name is present; empty-company rows always insert.
CREATE TABLE IF NOT EXISTS affiliations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	organizer_id TEXT NOT NULL,
	person_id INTEGER NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	company_name TEXT NOT NULL DEFAULT '',
	position TEXT NOT NULL DEFAULT '',
	country_code TEXT NOT NULL DEFAULT '',
	city TEXT NOT NULL DEFAULT '',
	website TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT 'mining',
	source_ref TEXT NOT NULL DEFAULT '',
	mining_job_id TEXT NOT NULL DEFAULT '',
	confidence REAL NOT NULL DEFAULT 0,
	raw TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_affiliations_identity
	ON affiliations(organizer_id, person_id, lower(company_name))
	WHERE company_name != '';
CREATE INDEX IF NOT EXISTS idx_affiliations_person ON affiliations(person_id);
`

// migrate applies the schema
func (s *SQLiteDB) migrate() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Debug().Msg("Database schema applied")
	return nil
}
