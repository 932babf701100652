package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/prospector/internal/models"
)

// JobListOptions filters and pages job listings
type JobListOptions struct {
	OrganizerID string
	Status      string
	Search      string
	Page        int
	Limit       int
}

// JobStats aggregates counts across an organizer's jobs
type JobStats struct {
	Pending     int `json:"pending"`
	Running     int `json:"running"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	TotalEmails int `json:"total_emails"`
}

// JobStorage persists mining jobs
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, int, error)
	GetJobStats(ctx context.Context, organizerID string) (*JobStats, error)
	DeleteJob(ctx context.Context, id string) error

	// ClearFileData drops the uploaded payload; called on every terminal
	// transition and by the cleanup tool.
	ClearFileData(ctx context.Context, id string) error

	// FailStaleJobs marks running jobs not updated since the cutoff as
	// failed and returns how many were touched.
	FailStaleJobs(ctx context.Context, cutoff time.Time, reason string) (int, error)
}

// ResultStorage persists raw per-contact mining results
type ResultStorage interface {
	// UpsertResults inserts merged candidates for a job. On duplicate
	// (job_id, primary email) the existing row is enriched: empty fields
	// filled, confidence maxed.
	UpsertResults(ctx context.Context, results []*models.MiningResult) error
	ListResults(ctx context.Context, jobID string, limit, offset int) ([]*models.MiningResult, error)
	CountResults(ctx context.Context, jobID string) (int, error)
	DeleteResultsForJob(ctx context.Context, jobID string) error

	// ListResultsForOrganizer feeds the backfill tool
	ListResultsForOrganizer(ctx context.Context, organizerID string, limit, offset int) ([]*models.MiningResult, error)

	// DeleteOrphanedResults removes results whose job no longer exists and
	// returns how many rows were pruned.
	DeleteOrphanedResults(ctx context.Context) (int, error)
}

// PersonStorage persists canonical persons and affiliations with
// fill-if-missing UPSERT semantics
type PersonStorage interface {
	// UpsertPerson inserts or updates on (organizer_id, lower(email)).
	// Names fill only when incoming is non-empty and existing is empty;
	// updated_at always refreshes. Returns the person row id.
	UpsertPerson(ctx context.Context, person *models.Person) (int64, error)

	// UpsertAffiliation applies the composite-key conflict policy: when
	// company_name is non-empty the row is unique per (organizer_id,
	// person_id, lower(company_name)) and conflicts fill-if-missing with
	// max confidence; empty-company rows always insert.
	UpsertAffiliation(ctx context.Context, aff *models.Affiliation) error

	GetPersonByEmail(ctx context.Context, organizerID, email string) (*models.Person, error)
	ListAffiliations(ctx context.Context, organizerID string, personID int64) ([]*models.Affiliation, error)
}

// StorageManager bundles the storage backends behind one handle
type StorageManager interface {
	JobStorage() JobStorage
	ResultStorage() ResultStorage
	PersonStorage() PersonStorage

	// WithTx runs fn inside a single transaction; rollback on error.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}

// HTMLCacheEntry is a memoized fetch
type HTMLCacheEntry struct {
	HTML      string `json:"html"`
	HTTPCode  int    `json:"http_code"`
	FetchedAt int64  `json:"fetched_at"`
}

// HTMLCache memoizes fetched HTML by normalized URL.
// Get never returns an error to callers; a miss is (nil, false).
type HTMLCache interface {
	Get(url string) (*HTMLCacheEntry, bool)
	Set(url string, entry *HTMLCacheEntry)
	Close() error
}
