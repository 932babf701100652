package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/services/merge"
	"github.com/ternarybob/prospector/internal/services/miners"
	"github.com/ternarybob/prospector/internal/services/pagination"
)

// fullModeSequence is the fixed cheapest-first miner order for full mode
var fullModeSequence = []models.MinerName{
	models.MinerHTTPBasic,
	models.MinerTable,
	models.MinerBrowser,
}

// ownPaginationMiners page by themselves; the orchestrator runs them once
var ownPaginationMiners = map[models.MinerName]bool{
	models.MinerDirectory:     true,
	models.MinerVendorCatalog: true,
	models.MinerDocument:      true,
}

func (s *Service) runURL(ctx context.Context, job *models.Job) ([]models.Card, error) {
	if miners.IsPDFURL(job.Input) {
		return s.runPDFURL(ctx, job)
	}

	// Legacy engine skips analysis and pagination entirely
	if !s.config.Miner.UnifiedEngine {
		return s.runSingle(ctx, job, models.MinerHTTPBasic)
	}

	switch job.Config.Mode() {
	case models.MiningModeQuick:
		return s.runSingle(ctx, job, models.MinerHTTPBasic)
	case models.MiningModeFull:
		return s.runFull(ctx, job)
	default:
		return s.minePages(ctx, job, []models.MinerName{models.MinerAI})
	}
}

// runSingle runs one miner against the job input with no page loop
func (s *Service) runSingle(ctx context.Context, job *models.Job, name models.MinerName) ([]models.Card, error) {
	result, err := s.runMiner(ctx, name, job)
	cards := mergeOf(result.Contacts)
	if err != nil {
		return cards, err
	}
	if result.Status == interfaces.MineStatusError {
		return cards, fmt.Errorf("miner %s failed: %s", name, result.Meta.Error)
	}
	return cards, nil
}

// runFull analyzes the page first. A recommendation for a miner that
// handles its own pagination (directory, vendor catalog, document viewer)
// runs that miner once; everything else goes through the per-page
// fixed sequence.
func (s *Service) runFull(ctx context.Context, job *models.Job) ([]models.Card, error) {
	analysis, err := s.analyzer.Analyze(ctx, job.Input)
	if err != nil {
		return nil, err
	}

	if analysis.PageType == models.PageTypeBlocked {
		return nil, interfaces.ErrBlockDetected
	}

	recommended := analysis.Recommendation.Miner
	if ownPaginationMiners[recommended] && s.registry.Has(recommended) {
		job.SetStat("selected_miner", string(recommended))
		return s.runSingle(ctx, job, recommended)
	}

	return s.minePages(ctx, job, fullModeSequence)
}

// minePages iterates the page loop, running the miner sequence on every
// page and merging as it goes. Stops on the page budget, three
// consecutive empty pages, or a repeated content hash. Partial cards are
// returned alongside any error.
func (s *Service) minePages(ctx context.Context, job *models.Job, sequence []models.MinerName) ([]models.Card, error) {
	maxPages := job.Config.EffectiveMaxPages(s.config.Miner.MaxPages)

	pageURLs, total, detected, err := s.paginator.GeneratePageURLs(ctx, job.Input, pagination.Options{
		MaxPages:   maxPages,
		ForceTotal: job.Config.ForcePageCount,
	})
	if err != nil {
		return nil, fmt.Errorf("enumerate pages: %w", err)
	}

	job.TotalPages = total
	s.logger.Info().
		Str("job_id", job.ID).
		Int("pages", len(pageURLs)).
		Bool("detected", detected).
		Msg("Page loop starting")

	acc := merge.NewAccumulator()
	seenHashes := make(map[string]bool)
	emptyStreak := 0

	for i, pageURL := range pageURLs {
		if ctx.Err() != nil {
			return acc.Cards(), ctx.Err()
		}
		if i > 0 {
			if err := s.sleepPolitely(ctx, job); err != nil {
				return acc.Cards(), err
			}
		}

		pageCards, err := s.minePage(ctx, job, pageURL, sequence)
		if err != nil {
			acc.Add(pageCards)
			return acc.Cards(), err
		}

		job.ProcessedPages = i + 1
		job.Progress = float64(i+1) / float64(len(pageURLs)) * 100
		s.reportProgress(job)

		if len(pageCards) == 0 {
			emptyStreak++
			if emptyStreak >= emptyPageLimit {
				s.logger.Info().Str("job_id", job.ID).Int("page", i+1).
					Msg("Stopping after consecutive empty pages")
				break
			}
			continue
		}
		emptyStreak = 0

		hash := pagination.CreateContentHash(pageCards)
		if seenHashes[hash] {
			s.logger.Info().Str("job_id", job.ID).Int("page", i+1).
				Msg("Stopping on repeated page content")
			break
		}
		seenHashes[hash] = true

		acc.Add(pageCards)
	}

	return acc.Cards(), nil
}

// minePage runs the miner sequence against one page URL. SUCCESS and DEAD
// stop the sequence; anything else falls through to the next miner.
func (s *Service) minePage(ctx context.Context, job *models.Job, pageURL string, sequence []models.MinerName) ([]models.Card, error) {
	pageJob := *job
	pageJob.Input = pageURL

	pageAcc := merge.NewAccumulator()
	for _, name := range sequence {
		if ctx.Err() != nil {
			return pageAcc.Cards(), ctx.Err()
		}

		result, err := s.runMiner(ctx, name, &pageJob)
		if err != nil {
			pageAcc.Add(result.Contacts)
			return pageAcc.Cards(), err
		}

		pageAcc.Add(result.Contacts)
		if result.Status.IsTerminal() {
			if result.Status == interfaces.MineStatusDead {
				s.logger.Warn().Str("job_id", job.ID).Str("miner", string(name)).
					Str("url", pageURL).Msg("Page reported dead")
			}
			break
		}
	}
	return pageAcc.Cards(), nil
}

func (s *Service) sleepPolitely(ctx context.Context, job *models.Job) error {
	delay := job.Config.ListPageDelay()
	if s.config.Crawler.ListPageDelay > 0 && job.Config.ListPageDelayMS <= 0 {
		delay = s.config.Crawler.ListPageDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Service) reportProgress(job *models.Job) {
	if s.Progress != nil {
		s.Progress(job)
	}
}
