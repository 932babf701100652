package orchestrator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/aggregate"
	"github.com/ternarybob/prospector/internal/services/analyzer"
	"github.com/ternarybob/prospector/internal/services/miners"
	"github.com/ternarybob/prospector/internal/services/pagination"
)

// fakeMiner replays scripted results, one per call, repeating the last
type fakeMiner struct {
	name    models.MinerName
	results []*interfaces.MineResult
	errs    []error
	calls   int
}

func (m *fakeMiner) Name() models.MinerName { return m.name }

func (m *fakeMiner) Mine(ctx context.Context, _ *models.Job) (*interfaces.MineResult, error) {
	if err := ctx.Err(); err != nil {
		return &interfaces.MineResult{Status: interfaces.MineStatusError}, err
	}
	idx := m.calls
	m.calls++
	if idx >= len(m.results) {
		idx = len(m.results) - 1
	}
	var err error
	if idx < len(m.errs) {
		err = m.errs[idx]
	}
	return m.results[idx], err
}

type memJobStorage struct {
	jobs    map[string]*models.Job
	cleared int
}

func (s *memJobStorage) SaveJob(_ context.Context, job *models.Job) error {
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *memJobStorage) GetJob(_ context.Context, id string) (*models.Job, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *memJobStorage) ListJobs(context.Context, *interfaces.JobListOptions) ([]*models.Job, int, error) {
	return nil, 0, nil
}

func (s *memJobStorage) GetJobStats(context.Context, string) (*interfaces.JobStats, error) {
	return &interfaces.JobStats{}, nil
}

func (s *memJobStorage) DeleteJob(_ context.Context, id string) error {
	delete(s.jobs, id)
	return nil
}

func (s *memJobStorage) ClearFileData(_ context.Context, id string) error {
	s.cleared++
	if job, ok := s.jobs[id]; ok {
		job.FileData = nil
	}
	return nil
}

func (s *memJobStorage) FailStaleJobs(context.Context, time.Time, string) (int, error) {
	return 0, nil
}

type memResultStorage struct {
	results []*models.MiningResult
}

func (s *memResultStorage) UpsertResults(_ context.Context, results []*models.MiningResult) error {
	s.results = append(s.results, results...)
	return nil
}

func (s *memResultStorage) ListResults(context.Context, string, int, int) ([]*models.MiningResult, error) {
	return s.results, nil
}

func (s *memResultStorage) CountResults(context.Context, string) (int, error) {
	return len(s.results), nil
}

func (s *memResultStorage) DeleteResultsForJob(context.Context, string) error { return nil }

func (s *memResultStorage) ListResultsForOrganizer(context.Context, string, int, int) ([]*models.MiningResult, error) {
	return s.results, nil
}

func (s *memResultStorage) DeleteOrphanedResults(context.Context) (int, error) { return 0, nil }

type memManager struct {
	jobs    *memJobStorage
	results *memResultStorage
}

func newMemManager() *memManager {
	return &memManager{
		jobs:    &memJobStorage{jobs: make(map[string]*models.Job)},
		results: &memResultStorage{},
	}
}

func (m *memManager) JobStorage() interfaces.JobStorage       { return m.jobs }
func (m *memManager) ResultStorage() interfaces.ResultStorage { return m.results }
func (m *memManager) PersonStorage() interfaces.PersonStorage { return nil }
func (m *memManager) Close() error                            { return nil }

func (m *memManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func newTestService(storage *memManager, fakes ...*fakeMiner) *Service {
	logger := common.GetLogger()
	config := common.DefaultConfig()
	config.Miner.UnifiedEngine = true
	config.Aggregation.Enabled = false

	registry := miners.NewRegistry(logger)
	for _, m := range fakes {
		registry.Register(m)
	}

	return NewService(
		storage,
		registry,
		analyzer.NewService(nil, logger),
		pagination.NewHandler(nil, logger),
		aggregate.NewService(storage, config.Aggregation, logger),
		nil,
		config,
		logger,
	)
}

func successResult(emails ...string) *interfaces.MineResult {
	result := &interfaces.MineResult{Status: interfaces.MineStatusSuccess}
	for _, email := range emails {
		result.Contacts = append(result.Contacts, models.Card{Emails: []string{email}})
	}
	return result
}

func saveJob(t *testing.T, storage *memManager, job *models.Job) {
	t.Helper()
	if err := storage.jobs.SaveJob(context.Background(), job); err != nil {
		t.Fatalf("save job: %v", err)
	}
}

func TestRunQuickModeCompletes(t *testing.T) {
	storage := newMemManager()
	svc := newTestService(storage, &fakeMiner{
		name:    models.MinerHTTPBasic,
		results: []*interfaces.MineResult{successResult("a@x.com", "b@x.com")},
	})

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com",
		Status: models.JobStatusPending,
		Config: models.JobConfig{MiningMode: models.MiningModeQuick},
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.TotalFound != 2 || job.TotalEmailsRaw != 2 {
		t.Errorf("counters = %d/%d, want 2/2", job.TotalFound, job.TotalEmailsRaw)
	}
	if len(storage.results.results) != 2 {
		t.Errorf("persisted %d results, want 2", len(storage.results.results))
	}
	if storage.jobs.cleared == 0 {
		t.Error("file data was not cleared on terminal transition")
	}
	if job.Stats["outcome"] != "success" {
		t.Errorf("outcome = %v, want success", job.Stats["outcome"])
	}
}

func TestRunBlockedMinerMarksJobBlocked(t *testing.T) {
	storage := newMemManager()
	svc := newTestService(storage, &fakeMiner{
		name:    models.MinerHTTPBasic,
		results: []*interfaces.MineResult{{Status: interfaces.MineStatusBlocked, HTTPCode: 403}},
	})

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com",
		Status: models.JobStatusPending,
		Config: models.JobConfig{MiningMode: models.MiningModeQuick},
	})

	err := svc.Run(context.Background(), "job-1")
	if !interfaces.IsBlockDetected(err) {
		t.Fatalf("Run err = %v, want block sentinel", err)
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusBlocked {
		t.Errorf("status = %s, want blocked", job.Status)
	}
	if !strings.Contains(job.Error, "BLOCK_DETECTED") {
		t.Errorf("error = %q, want BLOCK_DETECTED token", job.Error)
	}
}

func TestPageLoopStopsAfterConsecutiveEmpties(t *testing.T) {
	storage := newMemManager()
	ai := &fakeMiner{
		name: models.MinerAI,
		results: []*interfaces.MineResult{
			successResult("a@x.com"),
			{Status: interfaces.MineStatusEmpty},
		},
	}
	svc := newTestService(storage, ai)

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com/list",
		Status: models.JobStatusPending,
		Config: models.JobConfig{
			MiningMode:      models.MiningModeAI,
			ForcePageCount:  10,
			ListPageDelayMS: 500,
		},
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Page 1 yields a card, pages 2-4 are empty, loop stops at streak 3
	if ai.calls != 4 {
		t.Errorf("miner ran %d times, want 4", ai.calls)
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.ProcessedPages != 4 {
		t.Errorf("processed pages = %d, want 4", job.ProcessedPages)
	}
	if len(storage.results.results) != 1 {
		t.Errorf("persisted %d results, want 1", len(storage.results.results))
	}
}

func TestPageLoopStopsOnRepeatedContent(t *testing.T) {
	storage := newMemManager()
	ai := &fakeMiner{
		name:    models.MinerAI,
		results: []*interfaces.MineResult{successResult("same@x.com")},
	}
	svc := newTestService(storage, ai)

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com/list",
		Status: models.JobStatusPending,
		Config: models.JobConfig{
			MiningMode:      models.MiningModeAI,
			ForcePageCount:  10,
			ListPageDelayMS: 500,
		},
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Page 2 repeats page 1's content hash
	if ai.calls != 2 {
		t.Errorf("miner ran %d times, want 2", ai.calls)
	}
	if len(storage.results.results) != 1 {
		t.Errorf("persisted %d results, want 1 deduplicated contact", len(storage.results.results))
	}
}

func TestFullModeSequenceStopsOnSuccess(t *testing.T) {
	storage := newMemManager()
	httpMiner := &fakeMiner{
		name:    models.MinerHTTPBasic,
		results: []*interfaces.MineResult{{Status: interfaces.MineStatusEmpty}},
	}
	tableMiner := &fakeMiner{
		name:    models.MinerTable,
		results: []*interfaces.MineResult{successResult("t@x.com")},
	}
	browserMiner := &fakeMiner{
		name:    models.MinerBrowser,
		results: []*interfaces.MineResult{successResult("never@x.com")},
	}
	svc := newTestService(storage, httpMiner, tableMiner, browserMiner)

	job := &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com/list",
		Status: models.JobStatusRunning,
		Config: models.JobConfig{ForcePageCount: 1},
	}

	cards, err := svc.minePages(context.Background(), job, fullModeSequence)
	if err != nil {
		t.Fatalf("minePages: %v", err)
	}

	if httpMiner.calls != 1 || tableMiner.calls != 1 {
		t.Errorf("http/table calls = %d/%d, want 1/1", httpMiner.calls, tableMiner.calls)
	}
	if browserMiner.calls != 0 {
		t.Error("browser must not run after table succeeded")
	}
	if len(cards) != 1 || cards[0].PrimaryEmail() != "t@x.com" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestRunTimeoutPersistsPartialResults(t *testing.T) {
	storage := newMemManager()
	ai := &fakeMiner{
		name:    models.MinerAI,
		results: []*interfaces.MineResult{successResult("partial@x.com")},
	}
	svc := newTestService(storage, ai)

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com/list",
		Status: models.JobStatusPending,
		Config: models.JobConfig{
			MiningMode:      models.MiningModeAI,
			ForcePageCount:  10,
			ListPageDelayMS: 600,
			TotalTimeoutMS:  250, // Deadline hits during the first polite delay
		},
	})

	err := svc.Run(context.Background(), "job-1")
	if err == nil {
		t.Fatal("Run should surface the timeout")
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
	if !strings.Contains(job.Error, "timed out") {
		t.Errorf("error = %q, want timeout message", job.Error)
	}
	if len(storage.results.results) != 1 {
		t.Errorf("persisted %d results, want partial contact saved", len(storage.results.results))
	}
}

func TestRunUnknownTypeFails(t *testing.T) {
	storage := newMemManager()
	svc := newTestService(storage)

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobType("bogus"), Status: models.JobStatusPending,
	})

	if err := svc.Run(context.Background(), "job-1"); err == nil {
		t.Fatal("Run should fail for unknown type")
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusFailed {
		t.Errorf("status = %s, want failed", job.Status)
	}
}

func TestRunFileJobDropsEmaillessCards(t *testing.T) {
	storage := newMemManager()
	fileMiner := &fakeMiner{
		name: models.MinerFile,
		results: []*interfaces.MineResult{{
			Status: interfaces.MineStatusSuccess,
			Contacts: []models.Card{
				{Emails: []string{"a@x.com"}, CompanyName: "Acme"},
				{CompanyName: "No Email GmbH"},
			},
		}},
	}
	svc := newTestService(storage, fileMiner)

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeCSV, Input: "upload.csv",
		Status:   models.JobStatusPending,
		FileData: []byte("name,email\nAcme,a@x.com\n"),
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Stats["decision"] != "ACCEPT" {
		t.Errorf("decision = %v, want ACCEPT", job.Stats["decision"])
	}
	if len(storage.results.results) != 1 {
		t.Errorf("persisted %d results, want 1 (email-less dropped)", len(storage.results.results))
	}
	if len(job.FileData) != 0 {
		t.Error("file data must be cleared after the run")
	}
}

func TestRunTextlessFileJobCompletesPartial(t *testing.T) {
	storage := newMemManager()
	fileMiner := &fakeMiner{
		name: models.MinerFile,
		results: []*interfaces.MineResult{{
			Status: interfaces.MineStatusPartial,
			Meta:   interfaces.MineMeta{Notes: "no extraction method produced usable text"},
		}},
	}
	svc := newTestService(storage, fileMiner)

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypePDF, Input: "scanned.pdf",
		Status:   models.JobStatusPending,
		FileData: []byte("%PDF-1.7"),
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed (no usable text is not fatal)", job.Status)
	}
	if job.Stats["decision"] != "RETRY" {
		t.Errorf("decision = %v, want RETRY", job.Stats["decision"])
	}
	if len(storage.results.results) != 0 {
		t.Errorf("persisted %d results, want 0", len(storage.results.results))
	}
}

func TestRunUsesConfiguredModeWhenJobOmitsIt(t *testing.T) {
	storage := newMemManager()
	httpMiner := &fakeMiner{
		name:    models.MinerHTTPBasic,
		results: []*interfaces.MineResult{successResult("a@x.com")},
	}
	ai := &fakeMiner{
		name:    models.MinerAI,
		results: []*interfaces.MineResult{successResult("never@x.com")},
	}
	svc := newTestService(storage, httpMiner, ai)
	svc.config.Miner.Mode = "quick"

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com",
		Status: models.JobStatusPending,
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if httpMiner.calls != 1 {
		t.Errorf("http miner calls = %d, want 1 under the configured quick mode", httpMiner.calls)
	}
	if ai.calls != 0 {
		t.Error("ai miner must not run when the configured default is quick")
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Config.Mode() != models.MiningModeQuick {
		t.Errorf("persisted mode = %s, want quick", job.Config.Mode())
	}
}

func TestUnifiedZeroContactOutcomeIsPartial(t *testing.T) {
	storage := newMemManager()
	svc := newTestService(storage, &fakeMiner{
		name:    models.MinerHTTPBasic,
		results: []*interfaces.MineResult{{Status: interfaces.MineStatusEmpty}},
	})

	saveJob(t, storage, &models.Job{
		ID: "job-1", Type: models.JobTypeURL, Input: "https://example.com",
		Status: models.JobStatusPending,
		Config: models.JobConfig{MiningMode: models.MiningModeQuick},
	})

	if err := svc.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ := storage.jobs.GetJob(context.Background(), "job-1")
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s, want completed", job.Status)
	}
	if job.Stats["outcome"] != "partial" {
		t.Errorf("outcome = %v, want partial under unified engine", job.Stats["outcome"])
	}

	// Legacy engine keeps calling the same run a success
	svc.config.Miner.UnifiedEngine = false
	if got := svc.outcomeFor(nil); got != "success" {
		t.Errorf("legacy outcome = %q, want success", got)
	}
}
