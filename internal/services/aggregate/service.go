package aggregate

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
)

// Stats summarizes one aggregation run
type Stats struct {
	PersonsUpserted      int `json:"persons_upserted"`
	AffiliationsUpserted int `json:"affiliations_upserted"`
	Skipped              int `json:"skipped"`
	Errors               int `json:"errors"`
}

// Service converts merged mining candidates into person and affiliation
// rows. Writes run one transaction per batch; a failed batch rolls back
// whole, counts one error, and the run continues with the next batch.
type Service struct {
	storage   interfaces.StorageManager
	batchSize int
	logger    arbor.ILogger
}

// NewService creates the aggregation service
func NewService(storage interfaces.StorageManager, config common.AggregationConfig, logger arbor.ILogger) *Service {
	batchSize := config.BatchSize
	if batchSize <= 0 || batchSize > 500 {
		batchSize = 500
	}
	return &Service{storage: storage, batchSize: batchSize, logger: logger}
}

// Aggregate writes canonical rows for every card with a usable email
func (s *Service) Aggregate(ctx context.Context, job *models.Job, cards []models.Card) *Stats {
	stats := &Stats{}
	if job.OrganizerID == "" {
		stats.Skipped = len(cards)
		s.logger.Debug().Str("job_id", job.ID).Msg("No organizer id, skipping aggregation")
		return stats
	}

	var eligible []models.Card
	for _, card := range cards {
		if card.PrimaryEmail() == "" {
			stats.Skipped++
			continue
		}
		eligible = append(eligible, card)
	}

	for start := 0; start < len(eligible); start += s.batchSize {
		end := start + s.batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]

		err := s.storage.WithTx(ctx, func(txCtx context.Context) error {
			return s.writeBatch(txCtx, job, batch, stats)
		})
		if err != nil {
			stats.Errors++
			s.logger.Warn().
				Err(err).
				Str("job_id", job.ID).
				Int("batch_start", start).
				Int("batch_size", len(batch)).
				Msg("Aggregation batch rolled back")
		}
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Int("persons", stats.PersonsUpserted).
		Int("affiliations", stats.AffiliationsUpserted).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("Aggregation complete")

	return stats
}

// writeBatch upserts one batch inside the caller's transaction. On
// failure the tentative counters are reset to their pre-batch values to
// match the rollback.
func (s *Service) writeBatch(ctx context.Context, job *models.Job, batch []models.Card, stats *Stats) error {
	persons := s.storage.PersonStorage()
	personsBefore := stats.PersonsUpserted
	affiliationsBefore := stats.AffiliationsUpserted

	for i := range batch {
		card := &batch[i]
		email := card.PrimaryEmail()

		first, last := ParseName(card.ContactName, email)
		personID, err := persons.UpsertPerson(ctx, &models.Person{
			OrganizerID: job.OrganizerID,
			Email:       email,
			FirstName:   first,
			LastName:    last,
		})
		if err != nil {
			stats.PersonsUpserted = personsBefore
			stats.AffiliationsUpserted = affiliationsBefore
			return err
		}
		stats.PersonsUpserted++

		aff := &models.Affiliation{
			OrganizerID: job.OrganizerID,
			PersonID:    personID,
			CompanyName: strings.TrimSpace(card.CompanyName),
			Position:    card.JobTitle,
			CountryCode: CountryCode(card),
			City:        card.City,
			Website:     card.Website,
			Phone:       card.Phone,
			SourceType:  sourceTypeFor(job),
			SourceRef:   card.SourceURL,
			MiningJobID: job.ID,
			Confidence:  float64(card.Confidence) / 100,
		}
		if err := persons.UpsertAffiliation(ctx, aff); err != nil {
			stats.PersonsUpserted = personsBefore
			stats.AffiliationsUpserted = affiliationsBefore
			return err
		}
		stats.AffiliationsUpserted++
	}
	return nil
}

func sourceTypeFor(job *models.Job) models.SourceType {
	if job.Type.IsFile() {
		return models.SourceTypeFile
	}
	if job.Config.Mode() == models.MiningModeAI {
		return models.SourceTypeAI
	}
	return models.SourceTypeMining
}
