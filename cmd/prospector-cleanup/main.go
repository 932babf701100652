// The cleanup binary is the one-shot version of the server's periodic
// sweep: stale running jobs are failed and terminal jobs lose any file
// payload that survived a crashed worker.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/models"
	"github.com/ternarybob/prospector/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	staleAfter := flag.Duration("stale-after", 0, "Fail running jobs older than this (overrides config)")
	flag.Parse()

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
	logger := common.InitLogger(config)

	cutoffAge := config.Cleanup.StaleAfter
	if *staleAfter > 0 {
		cutoffAge = *staleAfter
	}
	if cutoffAge <= 0 {
		cutoffAge = 30 * time.Minute
	}

	storage, err := sqlite.NewManager(logger, &config.Storage.SQLite)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open storage")
		os.Exit(1)
	}
	defer storage.Close()

	ctx := context.Background()
	jobs := storage.JobStorage()

	failed, err := jobs.FailStaleJobs(ctx, time.Now().Add(-cutoffAge), "worker stopped responding")
	if err != nil {
		logger.Error().Err(err).Msg("Stale job sweep failed")
		os.Exit(1)
	}

	// Terminal jobs should not hold payloads; clear any stragglers
	cleared := 0
	for _, status := range []models.JobStatus{
		models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusBlocked,
	} {
		page := 1
		for {
			batch, _, err := jobs.ListJobs(ctx, &interfaces.JobListOptions{
				Status: string(status),
				Page:   page,
				Limit:  200,
			})
			if err != nil {
				logger.Error().Err(err).Str("status", string(status)).Msg("Failed to list terminal jobs")
				os.Exit(1)
			}
			if len(batch) == 0 {
				break
			}
			for _, job := range batch {
				if err := jobs.ClearFileData(ctx, job.ID); err != nil {
					logger.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to clear file data")
					continue
				}
				cleared++
			}
			if len(batch) < 200 {
				break
			}
			page++
		}
	}

	pruned, err := storage.ResultStorage().DeleteOrphanedResults(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Orphaned result prune failed")
		os.Exit(1)
	}

	logger.Info().
		Int("failed", failed).
		Int("cleared", cleared).
		Int("pruned", pruned).
		Msg("Cleanup finished")
}
