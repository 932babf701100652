// Package orchestrator routes jobs to miners, runs the page loop, and
// owns the job lifecycle from running to a terminal status.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/aggregate"
	"github.com/ternarybob/prospector/internal/services/analyzer"
	"github.com/ternarybob/prospector/internal/services/fetch"
	"github.com/ternarybob/prospector/internal/services/merge"
	"github.com/ternarybob/prospector/internal/services/miners"
	"github.com/ternarybob/prospector/internal/services/pagination"
)

const defaultTotalTimeout = 8 * time.Minute

// emptyPageLimit stops the page loop after this many consecutive pages
// without contacts
const emptyPageLimit = 3

// Service runs mining jobs end to end
type Service struct {
	storage    interfaces.StorageManager
	registry   *miners.Registry
	analyzer   *analyzer.Service
	paginator  *pagination.Handler
	aggregator *aggregate.Service
	fetcher    *fetch.Client
	config     *common.Config
	logger     arbor.ILogger

	// Progress receives per-page updates when set; nil is fine.
	Progress func(job *models.Job)
}

// NewService creates the orchestrator
func NewService(
	storage interfaces.StorageManager,
	registry *miners.Registry,
	analyzerSvc *analyzer.Service,
	paginator *pagination.Handler,
	aggregator *aggregate.Service,
	fetcher *fetch.Client,
	config *common.Config,
	logger arbor.ILogger,
) *Service {
	return &Service{
		storage:    storage,
		registry:   registry,
		analyzer:   analyzerSvc,
		paginator:  paginator,
		aggregator: aggregator,
		fetcher:    fetcher,
		config:     config,
		logger:     logger,
	}
}

// Run executes one job to a terminal status. The job is never left in
// running: every exit path writes completed, failed, or blocked and
// clears the uploaded payload.
func (s *Service) Run(ctx context.Context, jobID string) error {
	jobs := s.storage.JobStorage()

	job, err := jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
	}

	s.applyMinerDefaults(job)

	job.Status = models.JobStatusRunning
	job.StartedAt = time.Now()
	if err := jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}

	timeout := job.Config.TotalTimeout(s.totalTimeout())
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info().
		Str("job_id", job.ID).
		Str("type", string(job.Type)).
		Str("input", job.Input).
		Dur("timeout", timeout).
		Msg("Job started")

	cards, mineErr := s.route(runCtx, job)
	return s.finalize(ctx, job, cards, mineErr)
}

// applyMinerDefaults fills gaps in the job's config snapshot from the
// service configuration before the run persists it. A job that names no
// mining mode inherits the configured one; everything downstream,
// aggregation included, then reads a single effective mode.
func (s *Service) applyMinerDefaults(job *models.Job) {
	if job.Config.MiningMode == "" && s.config.Miner.Mode != "" {
		job.Config.MiningMode = models.MiningMode(s.config.Miner.Mode)
	}
}

func (s *Service) totalTimeout() time.Duration {
	if s.config.Miner.TotalTimeout > 0 {
		return s.config.Miner.TotalTimeout
	}
	return defaultTotalTimeout
}

// route dispatches by normalized job type. Returned cards are already
// merged and scored; they are kept even when err is non-nil so partial
// progress survives timeouts and blocks.
func (s *Service) route(ctx context.Context, job *models.Job) ([]models.Card, error) {
	switch models.NormalizeType(job.Type) {
	case "file":
		return s.runFile(ctx, job)
	case "url":
		return s.runURL(ctx, job)
	default:
		return nil, fmt.Errorf("unknown job type %q", job.Type)
	}
}

// finalize persists results, triggers aggregation, and writes the
// terminal status. Uses the parent context so a timed-out run can still
// save its partial results.
func (s *Service) finalize(ctx context.Context, job *models.Job, cards []models.Card, mineErr error) error {
	jobs := s.storage.JobStorage()

	if err := s.persistResults(ctx, job, cards); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to persist results")
		if mineErr == nil {
			mineErr = err
		}
	}

	if s.config.Aggregation.Enabled && len(cards) > 0 {
		stats := s.aggregator.Aggregate(ctx, job, cards)
		job.TotalProspectsCreated = stats.PersonsUpserted
		job.SetStat("aggregation_errors", stats.Errors)
	}

	switch {
	case mineErr == nil:
		job.Status = models.JobStatusCompleted
		job.Progress = 100
		job.SetStat("outcome", s.outcomeFor(cards))
	case interfaces.IsBlockDetected(mineErr):
		job.Status = models.JobStatusBlocked
		job.Error = mineErr.Error()
	case errors.Is(mineErr, context.DeadlineExceeded):
		job.Status = models.JobStatusFailed
		job.Error = fmt.Sprintf("mining timed out with %d contacts collected", len(cards))
	default:
		job.Status = models.JobStatusFailed
		job.Error = mineErr.Error()
	}
	job.CompletedAt = time.Now()
	job.FileData = nil

	if err := jobs.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("save terminal job: %w", err)
	}
	if err := jobs.ClearFileData(ctx, job.ID); err != nil {
		s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to clear file data")
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("contacts", len(cards)).
		Int("emails", job.TotalEmailsRaw).
		Msg("Job finished")

	if job.Status == models.JobStatusCompleted {
		return nil
	}
	return mineErr
}

// outcomeFor records the zero-contact semantics. The unified engine calls
// an empty completed run partial; the legacy path keeps calling a clean
// fetch with no emails a success.
func (s *Service) outcomeFor(cards []models.Card) string {
	if len(cards) > 0 {
		return strings.ToLower(string(interfaces.MineStatusSuccess))
	}
	if s.config.Miner.UnifiedEngine {
		return strings.ToLower(string(interfaces.MineStatusPartial))
	}
	return strings.ToLower(string(interfaces.MineStatusSuccess))
}

func (s *Service) persistResults(ctx context.Context, job *models.Job, cards []models.Card) error {
	if len(cards) == 0 {
		job.TotalFound = 0
		return nil
	}

	results := make([]*models.MiningResult, 0, len(cards))
	emailSeen := make(map[string]struct{})
	for i := range cards {
		card := &cards[i]
		for _, email := range card.Emails {
			emailSeen[strings.ToLower(email)] = struct{}{}
		}

		sourceURL := card.SourceURL
		if sourceURL == "" {
			sourceURL = job.Input
		}
		results = append(results, &models.MiningResult{
			JobID:       job.ID,
			OrganizerID: job.OrganizerID,
			SourceURL:   sourceURL,
			CompanyName: card.CompanyName,
			ContactName: card.ContactName,
			JobTitle:    card.JobTitle,
			Phone:       card.Phone,
			Country:     card.Country,
			City:        card.City,
			Address:     card.Address,
			Website:     card.Website,
			Emails:      card.Emails,
			Confidence:  card.Confidence,
			Raw:         string(card.Raw),
		})
	}

	job.TotalFound = len(cards)
	job.TotalEmailsRaw = len(emailSeen)

	return s.storage.ResultStorage().UpsertResults(ctx, results)
}

// runMiner runs one miner and normalizes its error reporting: a BLOCKED
// status without an error is converted to the sentinel so callers have a
// single signal to match.
func (s *Service) runMiner(ctx context.Context, name models.MinerName, job *models.Job) (*interfaces.MineResult, error) {
	miner := s.registry.Get(name)
	start := time.Now()

	result, err := miner.Mine(ctx, job)
	elapsed := time.Since(start)

	if result == nil {
		result = &interfaces.MineResult{Status: interfaces.MineStatusError}
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("miner", string(name)).
		Str("status", string(result.Status)).
		Int("contacts", len(result.Contacts)).
		Dur("elapsed", elapsed).
		Msg("Miner run finished")

	if err == nil && result.Status == interfaces.MineStatusBlocked {
		err = interfaces.ErrBlockDetected
	}
	return result, err
}

// mergeOf runs cards through the accumulator for normalization, the
// fill-if-missing merge, and confidence scoring
func mergeOf(groups ...[]models.Card) []models.Card {
	acc := merge.NewAccumulator()
	for _, cards := range groups {
		acc.Add(cards)
	}
	return acc.Cards()
}
