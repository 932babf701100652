// The backfill binary replays the aggregation trigger over an
// organizer's existing mining results, building persons and affiliations
// for rows mined before shadow mode existed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/app"
	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/models"
)

const pageSize = 500

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	organizerID := flag.String("organizer", "", "Organizer id to backfill (required)")
	flag.Parse()

	if *organizerID == "" {
		fmt.Fprintln(os.Stderr, "usage: prospector-backfill -organizer <id> [-config <path>]")
		os.Exit(1)
	}

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	} else if _, err := os.Stat("prospector.toml"); err == nil {
		paths = append(paths, "prospector.toml")
	}

	config, err := common.LoadFromFiles(paths...)
	if err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}
	// Backfill is the aggregation; the shadow-mode switch does not apply
	config.Aggregation.Enabled = true

	logger := common.InitLogger(config)

	ctx := context.Background()
	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	results := application.StorageManager.ResultStorage()
	totalPersons := 0
	totalErrors := 0

	for offset := 0; ; offset += pageSize {
		page, err := results.ListResultsForOrganizer(ctx, *organizerID, pageSize, offset)
		if err != nil {
			logger.Error().Err(err).Int("offset", offset).Msg("Failed to load results page")
			os.Exit(1)
		}
		if len(page) == 0 {
			break
		}

		// Group by job so source typing and job linkage stay correct
		byJob := make(map[string][]models.Card)
		for _, r := range page {
			byJob[r.JobID] = append(byJob[r.JobID], models.Card{
				CompanyName: r.CompanyName,
				ContactName: r.ContactName,
				JobTitle:    r.JobTitle,
				Emails:      r.Emails,
				Phone:       r.Phone,
				Website:     r.Website,
				Country:     r.Country,
				City:        r.City,
				Address:     r.Address,
				Confidence:  r.Confidence,
				SourceURL:   r.SourceURL,
			})
		}

		for jobID, cards := range byJob {
			job, err := application.StorageManager.JobStorage().GetJob(ctx, jobID)
			if err != nil || job == nil {
				// Orphaned results still aggregate under a synthetic job
				job = &models.Job{ID: jobID, OrganizerID: *organizerID, Type: models.JobTypeURL}
			}
			stats := application.Aggregator.Aggregate(ctx, job, cards)
			totalPersons += stats.PersonsUpserted
			totalErrors += stats.Errors
		}

		if len(page) < pageSize {
			break
		}
	}

	logger.Info().
		Str("organizer_id", *organizerID).
		Int("persons", totalPersons).
		Int("errors", totalErrors).
		Msg("Backfill finished")

	if totalErrors > 0 {
		application.Close()
		os.Exit(1)
	}
}
