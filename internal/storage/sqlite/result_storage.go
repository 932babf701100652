package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/models"
)

// ResultStorage implements mining result persistence using SQLite
type ResultStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewResultStorage creates a new SQLite result storage
func NewResultStorage(db *SQLiteDB, logger arbor.ILogger) *ResultStorage {
	return &ResultStorage{db: db, logger: logger}
}

const resultColumns = `id, job_id, organizer_id, source_url, company_name,
	contact_name, job_title, phone, country, city, address, website,
	emails_json, confidence, raw, created_at`

// upsertResultSQL enriches an existing (job, email) row instead of
// duplicating it: empty fields fill from the new row, confidence keeps
// the maximum, and the longer email list wins.
const upsertResultSQL = `
	INSERT INTO mining_results (
		job_id, organizer_id, source_url, company_name, contact_name,
		job_title, phone, country, city, address, website, emails_json,
		primary_email, confidence, raw, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(job_id, primary_email) DO UPDATE SET
		company_name = CASE WHEN mining_results.company_name = '' THEN excluded.company_name ELSE mining_results.company_name END,
		contact_name = CASE WHEN mining_results.contact_name = '' THEN excluded.contact_name ELSE mining_results.contact_name END,
		job_title = CASE WHEN mining_results.job_title = '' THEN excluded.job_title ELSE mining_results.job_title END,
		phone = CASE WHEN mining_results.phone = '' THEN excluded.phone ELSE mining_results.phone END,
		country = CASE WHEN mining_results.country = '' THEN excluded.country ELSE mining_results.country END,
		city = CASE WHEN mining_results.city = '' THEN excluded.city ELSE mining_results.city END,
		address = CASE WHEN mining_results.address = '' THEN excluded.address ELSE mining_results.address END,
		website = CASE WHEN mining_results.website = '' THEN excluded.website ELSE mining_results.website END,
		emails_json = CASE WHEN length(excluded.emails_json) > length(mining_results.emails_json) THEN excluded.emails_json ELSE mining_results.emails_json END,
		confidence = MAX(mining_results.confidence, excluded.confidence)`

// UpsertResults writes merged candidates for a job
func (s *ResultStorage) UpsertResults(ctx context.Context, results []*models.MiningResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn := s.db.conn(ctx)
	now := time.Now().Unix()

	for _, r := range results {
		var primaryEmail interface{}
		if email := primaryEmailOf(r); email != "" {
			primaryEmail = strings.ToLower(email)
		}

		_, err := conn.ExecContext(ctx, upsertResultSQL,
			r.JobID, r.OrganizerID, r.SourceURL, r.CompanyName, r.ContactName,
			r.JobTitle, r.Phone, r.Country, r.City, r.Address, r.Website,
			r.EmailsJSON(), primaryEmail, r.Confidence, r.Raw, now)
		if err != nil {
			return fmt.Errorf("failed to upsert result for job %s: %w", r.JobID, err)
		}
	}
	return nil
}

// ListResults returns a page of results for a job, newest first
func (s *ResultStorage) ListResults(ctx context.Context, jobID string, limit, offset int) ([]*models.MiningResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := `SELECT ` + resultColumns + ` FROM mining_results
		WHERE job_id = ? ORDER BY confidence DESC, id ASC LIMIT ? OFFSET ?`

	rows, err := s.db.conn(ctx).QueryContext(ctx, query, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// CountResults returns the number of results for a job
func (s *ResultStorage) CountResults(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mining_results WHERE job_id = ?`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

// DeleteResultsForJob removes all results belonging to a job
func (s *ResultStorage) DeleteResultsForJob(ctx context.Context, jobID string) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM mining_results WHERE job_id = ?`, jobID)
	if err != nil {
		return fmt.Errorf("failed to delete results: %w", err)
	}
	return nil
}

// ListResultsForOrganizer pages through every result under an organizer,
// oldest first, for re-aggregation
func (s *ResultStorage) ListResultsForOrganizer(ctx context.Context, organizerID string, limit, offset int) ([]*models.MiningResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	query := `SELECT ` + resultColumns + ` FROM mining_results
		WHERE organizer_id = ? ORDER BY id ASC LIMIT ? OFFSET ?`

	rows, err := s.db.conn(ctx).QueryContext(ctx, query, organizerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizer results: %w", err)
	}
	defer rows.Close()
	return scanResults(rows)
}

// DeleteOrphanedResults prunes results left behind by deleted jobs
func (s *ResultStorage) DeleteOrphanedResults(ctx context.Context) (int, error) {
	res, err := s.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM mining_results
		 WHERE job_id NOT IN (SELECT id FROM mining_jobs)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prune orphaned results: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func scanResults(rows *sql.Rows) ([]*models.MiningResult, error) {
	var results []*models.MiningResult
	for rows.Next() {
		var r models.MiningResult
		var emailsJSON string
		var createdAt int64

		err := rows.Scan(&r.ID, &r.JobID, &r.OrganizerID, &r.SourceURL,
			&r.CompanyName, &r.ContactName, &r.JobTitle, &r.Phone,
			&r.Country, &r.City, &r.Address, &r.Website,
			&emailsJSON, &r.Confidence, &r.Raw, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		r.Emails = models.EmailsFromJSON(emailsJSON)
		r.CreatedAt = time.Unix(createdAt, 0)
		results = append(results, &r)
	}
	return results, rows.Err()
}

func primaryEmailOf(r *models.MiningResult) string {
	if len(r.Emails) == 0 {
		return ""
	}
	return r.Emails[0]
}
