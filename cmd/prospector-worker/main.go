// The worker binary runs exactly one mining job to a terminal status.
// The job id comes from the PROSPECTOR_JOB_ID environment variable; the
// process exits 0 on a completed job and 1 otherwise, and never leaves
// the job in running.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/app"
	"github.com/ternarybob/prospector/internal/common"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	jobIDFlag := flag.String("job", "", "Job id (overrides PROSPECTOR_JOB_ID)")
	flag.Parse()

	jobID := *jobIDFlag
	if jobID == "" {
		jobID = os.Getenv("PROSPECTOR_JOB_ID")
	}
	if jobID == "" {
		fmt.Fprintln(os.Stderr, "PROSPECTOR_JOB_ID is required")
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
	logger := common.InitLogger(config)

	ctx := context.Background()
	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	logger.Info().Str("job_id", jobID).Msg("Worker starting")

	// Run owns the terminal transition: on any error the job is already
	// marked failed or blocked before the error reaches us.
	if err := application.Orchestrator.Run(ctx, jobID); err != nil {
		logger.Error().Err(err).Str("job_id", jobID).Msg("Job did not complete")
		application.Close()
		os.Exit(1)
	}

	logger.Info().Str("job_id", jobID).Msg("Job completed")
}
