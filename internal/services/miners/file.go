package miners

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// FileMiner runs uploaded file payloads through the extractor and
// builds cards from whatever structure the extraction found: structured
// cards first, tables in the text second, a bare email scan last.
type FileMiner struct {
	extractor interfaces.FileExtractor
	logger    arbor.ILogger
}

// NewFileMiner creates the file miner
func NewFileMiner(extractor interfaces.FileExtractor, logger arbor.ILogger) *FileMiner {
	return &FileMiner{extractor: extractor, logger: logger}
}

// Name identifies the miner
func (m *FileMiner) Name() models.MinerName { return models.MinerFile }

// Mine extracts contacts from the job's file payload
func (m *FileMiner) Mine(ctx context.Context, job *models.Job) (*interfaces.MineResult, error) {
	start := time.Now()
	result := &interfaces.MineResult{
		Status: interfaces.MineStatusEmpty,
		Meta:   interfaces.MineMeta{Source: string(m.Name())},
	}
	defer func() { result.Meta.ExecutionTimeMS = time.Since(start).Milliseconds() }()

	if len(job.FileData) == 0 {
		result.Status = interfaces.MineStatusError
		result.Meta.Error = "job has no file payload"
		return result, nil
	}

	extracted, err := m.extractor.Extract(job.Type, job.FileData)
	if err != nil {
		// A well-formed file with no extractable text (a scanned PDF of
		// images, say) is a partial outcome; only malformed payloads fail
		if errors.Is(err, interfaces.ErrNoUsableText) {
			result.Status = interfaces.MineStatusPartial
			result.Meta.Notes = err.Error()
			m.logger.Warn().
				Str("file", job.Input).
				Str("type", string(job.Type)).
				Msg("File yielded no usable text")
			return result, nil
		}
		result.Status = interfaces.MineStatusError
		result.Meta.Error = err.Error()
		return result, nil
	}

	cards := extracted.Cards
	if len(cards) == 0 {
		cards = ParseLabeledText(extracted.Text)
	}
	if len(cards) == 0 {
		for _, email := range ExtractEmails(extracted.Text) {
			cards = append(cards, models.Card{
				Emails:    []string{email},
				Website:   GuessWebsiteFromEmail([]string{email}),
				SourceURL: job.Input,
			})
		}
	}
	for i := range cards {
		if cards[i].SourceURL == "" {
			cards[i].SourceURL = job.Input
		}
	}

	result.Contacts = cards
	for _, card := range cards {
		result.Emails = append(result.Emails, card.Emails...)
	}
	result.Emails = dedupEmails(result.Emails)
	if len(cards) > 0 {
		result.Status = interfaces.MineStatusSuccess
	}
	result.Meta.Notes = "extraction method " + extracted.Method

	m.logger.Info().
		Str("file", job.Input).
		Str("type", string(job.Type)).
		Str("method", extracted.Method).
		Int("cards", len(cards)).
		Str("status", string(result.Status)).
		Msg("File mining complete")

	return result, nil
}

var _ interfaces.Miner = (*FileMiner)(nil)
