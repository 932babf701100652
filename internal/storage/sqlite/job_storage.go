package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// JobStorage implements job persistence using SQLite
type JobStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewJobStorage creates a new SQLite job storage
func NewJobStorage(db *SQLiteDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{db: db, logger: logger}
}

const jobColumns = `id, organizer_id, name, type, input, strategy, site_profile,
	config_json, status, progress, total_pages, processed_pages, total_found,
	total_emails_raw, total_prospects_created, stats_json, error,
	parent_job_id, retry_job_id, created_at, started_at, completed_at, updated_at`

// SaveJob inserts or replaces the full job row
func (s *JobStorage) SaveJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configJSON, err := job.Config.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize job config: %w", err)
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	query := `
		INSERT INTO mining_jobs (
			id, organizer_id, name, type, input, strategy, site_profile,
			config_json, status, progress, total_pages, processed_pages,
			total_found, total_emails_raw, total_prospects_created,
			stats_json, error, parent_job_id, retry_job_id, file_data,
			created_at, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			organizer_id = excluded.organizer_id,
			name = excluded.name,
			type = excluded.type,
			input = excluded.input,
			strategy = excluded.strategy,
			site_profile = excluded.site_profile,
			config_json = excluded.config_json,
			status = excluded.status,
			progress = excluded.progress,
			total_pages = excluded.total_pages,
			processed_pages = excluded.processed_pages,
			total_found = excluded.total_found,
			total_emails_raw = excluded.total_emails_raw,
			total_prospects_created = excluded.total_prospects_created,
			stats_json = excluded.stats_json,
			error = excluded.error,
			parent_job_id = excluded.parent_job_id,
			retry_job_id = excluded.retry_job_id,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`

	_, err = s.db.conn(ctx).ExecContext(ctx, query,
		job.ID, job.OrganizerID, job.Name, string(job.Type), job.Input,
		job.Strategy, job.SiteProfile, configJSON, string(job.Status),
		job.Progress, job.TotalPages, job.ProcessedPages, job.TotalFound,
		job.TotalEmailsRaw, job.TotalProspectsCreated, job.StatsJSON(),
		job.Error, job.ParentJobID, job.RetryJobID, job.FileData,
		job.CreatedAt.Unix(), nullUnix(job.StartedAt), nullUnix(job.CompletedAt),
		job.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}

	// The conflict branch deliberately leaves file_data untouched so that
	// status updates after ClearFileData cannot resurrect the payload.
	// A fresh insert above carries it; re-attach explicitly when present.
	if len(job.FileData) > 0 {
		_, err = s.db.conn(ctx).ExecContext(ctx,
			`UPDATE mining_jobs SET file_data = ? WHERE id = ?`,
			job.FileData, job.ID)
		if err != nil {
			return fmt.Errorf("failed to save job file data: %w", err)
		}
	}

	return nil
}

// GetJob loads a single job including its file payload
func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + `, file_data FROM mining_jobs WHERE id = ?`
	row := s.db.conn(ctx).QueryRowContext(ctx, query, id)

	job, fileData, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if len(fileData) > 0 {
		// Payloads can arrive hex- or base64-encoded from upload clients;
		// normalize once on read so every consumer sees raw bytes.
		normalized, nerr := common.NormalizeBuffer(fileData)
		if nerr != nil {
			s.logger.Warn().Err(nerr).Str("job_id", id).Msg("File data normalization failed, using raw bytes")
			normalized = fileData
		}
		job.FileData = normalized
	}

	return job, nil
}

// ListJobs returns one page of jobs plus the total match count.
// File payloads are never loaded by list queries.
func (s *JobStorage) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, int, error) {
	if opts == nil {
		opts = &interfaces.JobListOptions{}
	}

	var conditions []string
	var args []interface{}
	if opts.OrganizerID != "" {
		conditions = append(conditions, "organizer_id = ?")
		args = append(args, opts.OrganizerID)
	}
	if opts.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.Search != "" {
		conditions = append(conditions, "(name LIKE ? OR input LIKE ?)")
		pattern := "%" + opts.Search + "%"
		args = append(args, pattern, pattern)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM mining_jobs" + where
	if err := s.db.conn(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := opts.Page
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT ` + jobColumns + `, NULL FROM mining_jobs` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, _, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// GetJobStats aggregates status counts and raw email totals for an organizer
func (s *JobStorage) GetJobStats(ctx context.Context, organizerID string) (*interfaces.JobStats, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status IN ('pending', 'queued') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status IN ('failed', 'blocked') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_emails_raw), 0)
		FROM mining_jobs
		WHERE organizer_id = ?`

	stats := &interfaces.JobStats{}
	err := s.db.conn(ctx).QueryRowContext(ctx, query, organizerID).Scan(
		&stats.Pending, &stats.Running, &stats.Completed, &stats.Failed, &stats.TotalEmails)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return stats, nil
}

// DeleteJob removes the job row
func (s *JobStorage) DeleteJob(ctx context.Context, id string) error {
	_, err := s.db.conn(ctx).ExecContext(ctx, `DELETE FROM mining_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

// ClearFileData drops the uploaded payload for a job
func (s *JobStorage) ClearFileData(ctx context.Context, id string) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE mining_jobs SET file_data = NULL, updated_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to clear file data: %w", err)
	}
	return nil
}

// FailStaleJobs marks running jobs not updated since the cutoff as failed,
// dropping their payloads, and returns how many rows were touched
func (s *JobStorage) FailStaleJobs(ctx context.Context, cutoff time.Time, reason string) (int, error) {
	now := time.Now().Unix()
	result, err := s.db.conn(ctx).ExecContext(ctx, `
		UPDATE mining_jobs
		SET status = ?, error = ?, completed_at = ?, updated_at = ?, file_data = NULL
		WHERE status = ? AND updated_at < ?`,
		string(models.JobStatusFailed), reason, now, now,
		string(models.JobStatusRunning), cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		s.logger.Warn().Int64("count", affected).Msg("Marked stale running jobs as failed")
	}
	return int(affected), nil
}

// scanJob reads one job row. The final column is file_data, NULL on list queries.
func scanJob(row interface{ Scan(...interface{}) error }) (*models.Job, []byte, error) {
	var job models.Job
	var jobType, status, configJSON, statsJSON string
	var createdAt, updatedAt int64
	var startedAt, completedAt sql.NullInt64
	var fileData []byte

	err := row.Scan(
		&job.ID, &job.OrganizerID, &job.Name, &jobType, &job.Input,
		&job.Strategy, &job.SiteProfile, &configJSON, &status, &job.Progress,
		&job.TotalPages, &job.ProcessedPages, &job.TotalFound,
		&job.TotalEmailsRaw, &job.TotalProspectsCreated, &statsJSON,
		&job.Error, &job.ParentJobID, &job.RetryJobID,
		&createdAt, &startedAt, &completedAt, &updatedAt, &fileData)
	if err != nil {
		return nil, nil, err
	}

	job.Type = models.JobType(jobType)
	job.Status = models.JobStatus(status)
	job.CreatedAt = time.Unix(createdAt, 0)
	job.UpdatedAt = time.Unix(updatedAt, 0)
	if startedAt.Valid {
		job.StartedAt = time.Unix(startedAt.Int64, 0)
	}
	if completedAt.Valid {
		job.CompletedAt = time.Unix(completedAt.Int64, 0)
	}

	config, err := models.JobConfigFromJSON(configJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse job config: %w", err)
	}
	job.Config = config

	if strings.TrimSpace(statsJSON) != "" && statsJSON != "{}" {
		stats := make(map[string]interface{})
		if err := json.Unmarshal([]byte(statsJSON), &stats); err == nil {
			job.Stats = stats
		}
	}

	return &job, fileData, nil
}

// nullUnix converts a time to a nullable Unix timestamp
func nullUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
