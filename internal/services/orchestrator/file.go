package orchestrator

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// maxPDFDownloadBytes caps direct PDF downloads rerouted to the file path
const maxPDFDownloadBytes = 50 * 1024 * 1024

// runFile extracts contacts from the uploaded payload via the file miner,
// then validates: records without an email are dropped and the decision
// stat records whether the extraction is worth retrying with another type.
func (s *Service) runFile(ctx context.Context, job *models.Job) ([]models.Card, error) {
	if len(job.FileData) == 0 {
		return nil, fmt.Errorf("file job %s has no payload", job.ID)
	}

	result, err := s.runMiner(ctx, models.MinerFile, job)
	if err != nil {
		return mergeOf(result.Contacts), err
	}
	if result.Status == interfaces.MineStatusError {
		return nil, fmt.Errorf("file extraction failed: %s", result.Meta.Error)
	}

	cards := mergeOf(result.Contacts)

	// File results must carry an email; identity-only rows that survive
	// the merge are dropped here rather than persisted.
	valid := cards[:0]
	for _, card := range cards {
		if card.PrimaryEmail() != "" {
			valid = append(valid, card)
		}
	}

	if len(valid) > 0 {
		job.SetStat("decision", "ACCEPT")
	} else {
		job.SetStat("decision", "RETRY")
	}
	job.SetStat("extraction", result.Meta.Notes)

	return valid, nil
}

// runPDFURL downloads a direct PDF link to a temp file and reroutes it as
// a synthetic file job. The temp file is removed on success and on error.
func (s *Service) runPDFURL(ctx context.Context, job *models.Job) ([]models.Card, error) {
	data, code, err := s.fetcher.Download(ctx, job.Input, maxPDFDownloadBytes)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	if code == 401 || code == 403 || code == 429 {
		return nil, interfaces.ErrBlockDetected
	}
	if code >= 400 {
		return nil, fmt.Errorf("pdf download returned http %d", code)
	}

	tempFile, err := os.CreateTemp("", "prospector-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp pdf: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("write temp pdf: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp pdf: %w", err)
	}

	// Share the stats map so decision stats land on the real job
	if job.Stats == nil {
		job.Stats = make(map[string]interface{})
	}
	fileJob := *job
	fileJob.Type = models.JobTypePDF
	fileJob.FileData = data

	s.logger.Info().
		Str("job_id", job.ID).
		Str("url", job.Input).
		Int("bytes", len(data)).
		Msg("Rerouting direct PDF link as file job")

	return s.runFile(ctx, &fileJob)
}
