package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// setupTestDB creates a file-backed SQLite database in a temp dir
func setupTestDB(t *testing.T) (*SQLiteDB, func()) {
	tempDir := t.TempDir()
	config := &common.SQLiteConfig{
		Path:          tempDir + "/test.db",
		CacheSizeMB:   16,
		BusyTimeoutMS: 5000,
		WALMode:       false, // Disable WAL for simpler test cleanup
	}

	db, err := NewSQLiteDB(arbor.NewLogger(), config)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return db, func() { db.Close() }
}

func testJob(id string) *models.Job {
	return &models.Job{
		ID:          id,
		OrganizerID: "org-1",
		Name:        "Exhibitor list",
		Type:        models.JobTypeURL,
		Input:       "https://example.com/exhibitors",
		Strategy:    "auto",
		Status:      models.JobStatusPending,
		Config: models.JobConfig{
			MiningMode: models.MiningModeQuick,
			MaxPages:   5,
		},
	}
}

func TestSaveAndGetJob(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := testJob("job-1")
	job.SetStat("miner", "http_basic")
	require.NoError(t, storage.SaveJob(ctx, job))

	loaded, err := storage.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "org-1", loaded.OrganizerID)
	assert.Equal(t, models.JobTypeURL, loaded.Type)
	assert.Equal(t, models.JobStatusPending, loaded.Status)
	assert.Equal(t, models.MiningModeQuick, loaded.Config.MiningMode)
	assert.Equal(t, 5, loaded.Config.MaxPages)
	assert.Equal(t, "http_basic", loaded.Stats["miner"])
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.True(t, loaded.StartedAt.IsZero(), "started_at should stay null until run")
}

func TestGetJobMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	loaded, err := storage.GetJob(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveJobUpdatesOnConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := testJob("job-1")
	require.NoError(t, storage.SaveJob(ctx, job))

	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now()
	job.TotalFound = 12
	require.NoError(t, storage.SaveJob(ctx, job))

	loaded, err := storage.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, loaded.Status)
	assert.Equal(t, 12, loaded.TotalFound)
	assert.False(t, loaded.StartedAt.IsZero())
}

func TestFileDataNormalizedOnRead(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Hex-prefixed payload as an upload client would send it
	job := testJob("job-file")
	job.Type = models.JobTypePDF
	job.FileData = []byte(common.EncodeHexPrefixed([]byte("%PDF-1.4 test")))
	require.NoError(t, storage.SaveJob(ctx, job))

	loaded, err := storage.GetJob(ctx, "job-file")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 test"), loaded.FileData)
}

func TestClearFileData(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	job := testJob("job-file")
	job.Type = models.JobTypeCSV
	job.FileData = []byte("name,email\na,a@x.com\n")
	require.NoError(t, storage.SaveJob(ctx, job))
	require.NoError(t, storage.ClearFileData(ctx, "job-file"))

	loaded, err := storage.GetJob(ctx, "job-file")
	require.NoError(t, err)
	assert.Empty(t, loaded.FileData)

	// A later status update without a payload must not resurrect it
	loaded.Status = models.JobStatusCompleted
	loaded.FileData = nil
	require.NoError(t, storage.SaveJob(ctx, loaded))

	again, err := storage.GetJob(ctx, "job-file")
	require.NoError(t, err)
	assert.Empty(t, again.FileData)
}

func TestListJobsFiltersAndPages(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for i, status := range []models.JobStatus{
		models.JobStatusPending, models.JobStatusRunning, models.JobStatusCompleted,
	} {
		job := testJob("job-" + string(rune('a'+i)))
		job.Status = status
		job.FileData = []byte("payload")
		require.NoError(t, storage.SaveJob(ctx, job))
	}

	other := testJob("job-other")
	other.OrganizerID = "org-2"
	require.NoError(t, storage.SaveJob(ctx, other))

	jobs, total, err := storage.ListJobs(ctx, &interfaces.JobListOptions{OrganizerID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, jobs, 3)
	for _, j := range jobs {
		assert.Empty(t, j.FileData, "list queries must not load payloads")
	}

	jobs, total, err = storage.ListJobs(ctx, &interfaces.JobListOptions{
		OrganizerID: "org-1",
		Status:      string(models.JobStatusRunning),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusRunning, jobs[0].Status)

	jobs, total, err = storage.ListJobs(ctx, &interfaces.JobListOptions{Limit: 2, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, jobs, 2)
}

func TestGetJobStats(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	completed := testJob("job-done")
	completed.Status = models.JobStatusCompleted
	completed.TotalEmailsRaw = 42
	require.NoError(t, storage.SaveJob(ctx, completed))

	failed := testJob("job-bad")
	failed.Status = models.JobStatusBlocked
	require.NoError(t, storage.SaveJob(ctx, failed))

	pending := testJob("job-new")
	require.NoError(t, storage.SaveJob(ctx, pending))

	stats, err := storage.GetJobStats(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed, "blocked counts as failed in stats")
	assert.Equal(t, 42, stats.TotalEmails)
}

func TestFailStaleJobs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	stale := testJob("job-stale")
	stale.Status = models.JobStatusRunning
	stale.FileData = []byte("payload")
	require.NoError(t, storage.SaveJob(ctx, stale))

	// Backdate updated_at past the cutoff
	_, err := db.DB().Exec(`UPDATE mining_jobs SET updated_at = ? WHERE id = ?`,
		time.Now().Add(-2*time.Hour).Unix(), "job-stale")
	require.NoError(t, err)

	fresh := testJob("job-fresh")
	fresh.Status = models.JobStatusRunning
	require.NoError(t, storage.SaveJob(ctx, fresh))

	count, err := storage.FailStaleJobs(ctx, time.Now().Add(-time.Hour), "worker timed out")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	loaded, err := storage.GetJob(ctx, "job-stale")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, loaded.Status)
	assert.Equal(t, "worker timed out", loaded.Error)
	assert.Empty(t, loaded.FileData)
	assert.False(t, loaded.CompletedAt.IsZero())

	untouched, err := storage.GetJob(ctx, "job-fresh")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, untouched.Status)
}

func TestDeleteJob(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	storage := NewJobStorage(db, arbor.NewLogger())
	ctx := context.Background()

	require.NoError(t, storage.SaveJob(ctx, testJob("job-1")))
	require.NoError(t, storage.DeleteJob(ctx, "job-1"))

	loaded, err := storage.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
