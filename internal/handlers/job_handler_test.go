package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// fakeJobStorage is an in-memory JobStorage for handler tests
type fakeJobStorage struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newFakeJobStorage() *fakeJobStorage {
	return &fakeJobStorage{jobs: make(map[string]*models.Job)}
}

func (f *fakeJobStorage) SaveJob(_ context.Context, job *models.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *job
	f.jobs[job.ID] = &copied
	return nil
}

func (f *fakeJobStorage) GetJob(_ context.Context, id string) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobStorage) ListJobs(_ context.Context, _ *interfaces.JobListOptions) ([]*models.Job, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		copied := *job
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (f *fakeJobStorage) GetJobStats(_ context.Context, _ string) (*interfaces.JobStats, error) {
	return &interfaces.JobStats{}, nil
}

func (f *fakeJobStorage) DeleteJob(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	return nil
}

func (f *fakeJobStorage) ClearFileData(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[id]; ok {
		job.FileData = nil
	}
	return nil
}

func (f *fakeJobStorage) FailStaleJobs(_ context.Context, _ time.Time, _ string) (int, error) {
	return 0, nil
}

// fakeResultStorage records per-job results
type fakeResultStorage struct {
	mu      sync.Mutex
	results map[string][]*models.MiningResult
}

func newFakeResultStorage() *fakeResultStorage {
	return &fakeResultStorage{results: make(map[string][]*models.MiningResult)}
}

func (f *fakeResultStorage) UpsertResults(_ context.Context, results []*models.MiningResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.results[r.JobID] = append(f.results[r.JobID], r)
	}
	return nil
}

func (f *fakeResultStorage) ListResults(_ context.Context, jobID string, limit, offset int) ([]*models.MiningResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.results[jobID]
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeResultStorage) CountResults(_ context.Context, jobID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results[jobID]), nil
}

func (f *fakeResultStorage) DeleteResultsForJob(_ context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.results, jobID)
	return nil
}

func (f *fakeResultStorage) ListResultsForOrganizer(_ context.Context, _ string, _, _ int) ([]*models.MiningResult, error) {
	return nil, nil
}

func (f *fakeResultStorage) DeleteOrphanedResults(_ context.Context) (int, error) {
	return 0, nil
}

// fakeRunner records job ids it was asked to run
type fakeRunner struct {
	started chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{started: make(chan string, 4)}
}

func (f *fakeRunner) Run(_ context.Context, jobID string) error {
	f.started <- jobID
	return nil
}

func newTestHandler() (*JobHandler, *fakeJobStorage, *fakeResultStorage, *fakeRunner) {
	jobs := newFakeJobStorage()
	results := newFakeResultStorage()
	runner := newFakeRunner()
	handler := NewJobHandler(jobs, results, runner, common.GetLogger())
	return handler, jobs, results, runner
}

func postJSON(t *testing.T, handler http.HandlerFunc, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", url, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestCreateJobHandler_URLJob(t *testing.T) {
	handler, jobs, _, _ := newTestHandler()

	rec := postJSON(t, handler.CreateJobHandler, "/api/jobs", map[string]interface{}{
		"name":     "Expo exhibitors",
		"type":     "url",
		"input":    "https://example.com/exhibitors",
		"strategy": "http",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Job
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Errorf("Job id is not a UUID: %q", created.ID)
	}
	if created.Status != models.JobStatusPending {
		t.Errorf("Expected pending status, got %s", created.Status)
	}
	if created.Strategy != "http" {
		t.Errorf("Expected strategy http, got %s", created.Strategy)
	}

	stored, _ := jobs.GetJob(context.Background(), created.ID)
	if stored == nil {
		t.Fatal("Job was not persisted")
	}
}

func TestCreateJobHandler_RejectsBadURL(t *testing.T) {
	handler, _, _, _ := newTestHandler()

	for _, input := range []string{"ftp://example.com/list", "not-a-url", "https://"} {
		rec := postJSON(t, handler.CreateJobHandler, "/api/jobs", map[string]interface{}{
			"name":  "Bad input",
			"type":  "url",
			"input": input,
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("input %q: expected 400, got %d", input, rec.Code)
		}
	}
}

func TestCreateJobHandler_FileJobRequiresPayload(t *testing.T) {
	handler, _, _, _ := newTestHandler()

	rec := postJSON(t, handler.CreateJobHandler, "/api/jobs", map[string]interface{}{
		"name":  "Exhibitor list",
		"type":  "pdf",
		"input": "list.pdf",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 without file_data, got %d", rec.Code)
	}
}

func TestCreateJobHandler_FileJobNormalizesPayload(t *testing.T) {
	handler, jobs, _, _ := newTestHandler()
	payload := []byte("%PDF-1.4 exhibitors")

	rec := postJSON(t, handler.CreateJobHandler, "/api/jobs", map[string]interface{}{
		"name":      "Exhibitor list",
		"type":      "pdf",
		"input":     "list.pdf",
		"strategy":  "http",
		"file_data": common.EncodeHexPrefixed(payload),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Job
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	stored, _ := jobs.GetJob(context.Background(), created.ID)
	if stored == nil || !bytes.Equal(stored.FileData, payload) {
		t.Errorf("Stored payload was not decoded from the hex-prefixed form")
	}
}

func TestCreateJobHandler_AutoStrategyStartsWorker(t *testing.T) {
	handler, _, _, runner := newTestHandler()

	rec := postJSON(t, handler.CreateJobHandler, "/api/jobs", map[string]interface{}{
		"name":  "Auto run",
		"type":  "url",
		"input": "https://example.com/list",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", rec.Code)
	}

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker was not started for the default auto strategy")
	}
}

func TestGetJobHandler(t *testing.T) {
	handler, jobs, _, _ := newTestHandler()

	rec := httptest.NewRecorder()
	handler.GetJobHandler(rec, httptest.NewRequest("GET", "/api/jobs/not-a-uuid", nil), "not-a-uuid")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rec.Code)
	}

	missing := uuid.NewString()
	rec = httptest.NewRecorder()
	handler.GetJobHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+missing, nil), missing)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing job, got %d", rec.Code)
	}

	job := &models.Job{ID: uuid.NewString(), Name: "Found", Type: models.JobTypeURL, Status: models.JobStatusPending}
	_ = jobs.SaveJob(context.Background(), job)
	rec = httptest.NewRecorder()
	handler.GetJobHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+job.ID, nil), job.ID)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestUpdateJobHandler(t *testing.T) {
	handler, jobs, _, _ := newTestHandler()
	job := &models.Job{ID: uuid.NewString(), Name: "Patch me", Type: models.JobTypeURL, Status: models.JobStatusPending}
	_ = jobs.SaveJob(context.Background(), job)

	body, _ := json.Marshal(map[string]interface{}{"status": "sideways"})
	rec := httptest.NewRecorder()
	handler.UpdateJobHandler(rec, httptest.NewRequest("PATCH", "/api/jobs/"+job.ID, bytes.NewReader(body)), job.ID)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid status, got %d", rec.Code)
	}

	body, _ = json.Marshal(map[string]interface{}{"status": "queued", "progress": 25.0})
	rec = httptest.NewRecorder()
	handler.UpdateJobHandler(rec, httptest.NewRequest("PATCH", "/api/jobs/"+job.ID, bytes.NewReader(body)), job.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	updated, _ := jobs.GetJob(context.Background(), job.ID)
	if updated.Status != models.JobStatusQueued || updated.Progress != 25.0 {
		t.Errorf("Patch not applied: status=%s progress=%v", updated.Status, updated.Progress)
	}
}

func TestRunJobHandler_ConflictWhileRunning(t *testing.T) {
	handler, jobs, _, _ := newTestHandler()
	job := &models.Job{ID: uuid.NewString(), Name: "Busy", Type: models.JobTypeURL, Status: models.JobStatusRunning}
	_ = jobs.SaveJob(context.Background(), job)

	rec := httptest.NewRecorder()
	handler.RunJobHandler(rec, httptest.NewRequest("POST", "/api/jobs/"+job.ID+"/run", nil), job.ID)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for running job, got %d", rec.Code)
	}
}

func TestRetryJobHandler(t *testing.T) {
	handler, jobs, _, runner := newTestHandler()
	parent := &models.Job{
		ID:     uuid.NewString(),
		Name:   "Blocked run",
		Type:   models.JobTypeURL,
		Input:  "https://example.com/list",
		Status: models.JobStatusBlocked,
		Config: models.JobConfig{MaxPages: 5},
	}
	_ = jobs.SaveJob(context.Background(), parent)

	rec := httptest.NewRecorder()
	handler.RetryJobHandler(rec, httptest.NewRequest("POST", "/api/jobs/"+parent.ID+"/retry", nil), parent.ID)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var child models.Job
	if err := json.NewDecoder(rec.Body).Decode(&child); err != nil {
		t.Fatalf("Failed to decode child job: %v", err)
	}
	if child.ParentJobID != parent.ID {
		t.Errorf("Child parent link = %q, want %q", child.ParentJobID, parent.ID)
	}
	if child.Config.MaxPages != 5 {
		t.Errorf("Child config was not copied")
	}
	if child.Name != "Blocked run (Retry)" {
		t.Errorf("Child name = %q", child.Name)
	}

	linked, _ := jobs.GetJob(context.Background(), parent.ID)
	if linked.RetryJobID != child.ID {
		t.Errorf("Parent retry link = %q, want %q", linked.RetryJobID, child.ID)
	}

	select {
	case started := <-runner.started:
		if started != child.ID {
			t.Errorf("Worker started for %q, want child %q", started, child.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry did not start a worker")
	}
}

func TestDeleteJobHandler(t *testing.T) {
	handler, jobs, results, _ := newTestHandler()

	running := &models.Job{ID: uuid.NewString(), Type: models.JobTypeURL, Status: models.JobStatusRunning}
	_ = jobs.SaveJob(context.Background(), running)
	rec := httptest.NewRecorder()
	handler.DeleteJobHandler(rec, httptest.NewRequest("DELETE", "/api/jobs/"+running.ID, nil), running.ID)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 deleting a running job, got %d", rec.Code)
	}

	done := &models.Job{ID: uuid.NewString(), Type: models.JobTypeURL, Status: models.JobStatusCompleted}
	_ = jobs.SaveJob(context.Background(), done)
	_ = results.UpsertResults(context.Background(), []*models.MiningResult{
		{JobID: done.ID, Emails: []string{"info@example.com"}},
	})

	rec = httptest.NewRecorder()
	handler.DeleteJobHandler(rec, httptest.NewRequest("DELETE", "/api/jobs/"+done.ID, nil), done.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if job, _ := jobs.GetJob(context.Background(), done.ID); job != nil {
		t.Error("Job survived delete")
	}
	if count, _ := results.CountResults(context.Background(), done.ID); count != 0 {
		t.Error("Results survived delete")
	}
}

func TestListResultsHandler(t *testing.T) {
	results := newFakeResultStorage()
	handler := NewResultsHandler(results, common.GetLogger())

	jobID := uuid.NewString()
	_ = results.UpsertResults(context.Background(), []*models.MiningResult{
		{JobID: jobID, Emails: []string{"a@example.com"}, Confidence: 80},
		{JobID: jobID, Emails: []string{"b@example.com"}, Confidence: 60},
	})

	rec := httptest.NewRecorder()
	handler.ListResultsHandler(rec, httptest.NewRequest("GET", "/api/jobs/"+jobID+"/results", nil), jobID)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	rows := response["results"].([]interface{})
	if len(rows) != 2 {
		t.Errorf("Expected 2 results, got %d", len(rows))
	}
	if int(response["total"].(float64)) != 2 {
		t.Errorf("Expected total 2, got %v", response["total"])
	}
}
