// Package app wires configuration, storage, services, miners, and
// handlers into one dependency graph shared by the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/prospector/internal/common"
	"github.com/ternarybob/prospector/internal/handlers"
	"github.com/ternarybob/prospector/internal/interfaces"
	"github.com/ternarybob/prospector/internal/services/aggregate"
	"github.com/ternarybob/prospector/internal/services/analyzer"
	"github.com/ternarybob/prospector/internal/services/cache"
	"github.com/ternarybob/prospector/internal/services/extract"
	"github.com/ternarybob/prospector/internal/services/fetch"
	"github.com/ternarybob/prospector/internal/services/llm"
	"github.com/ternarybob/prospector/internal/services/miners"
	"github.com/ternarybob/prospector/internal/services/orchestrator"
	"github.com/ternarybob/prospector/internal/services/pagination"
	"github.com/ternarybob/prospector/internal/storage/sqlite"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	Cache          interfaces.HTMLCache
	Fetcher        *fetch.Client
	Registry       *miners.Registry
	Aggregator     *aggregate.Service
	Orchestrator   *orchestrator.Service

	JobHandler     *handlers.JobHandler
	ResultsHandler *handlers.ResultsHandler
	WSHandler      *handlers.WebSocketHandler
}

// New builds the full dependency graph. The ctx bounds LLM client setup
// only; long-lived components carry their own lifetimes.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := sqlite.NewManager(logger, &config.Storage.SQLite)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	htmlCache, err := cache.NewService(config.CacheTTL(), config.Storage.Cache.MaxEntrySize, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("init html cache: %w", err)
	}

	fetcher := fetch.NewClient(config.Crawler, htmlCache, logger)
	paginator := pagination.NewHandler(fetcher, logger)
	analyzerSvc := analyzer.NewService(fetcher, logger)
	extractor := extract.NewService(logger)

	registry := miners.NewRegistry(logger)
	registry.Register(miners.NewHTTPBasicMiner(fetcher, logger))
	registry.Register(miners.NewTableMiner(fetcher, logger))
	registry.Register(miners.NewBrowserMiner(config.Crawler, config.Miner, logger))
	registry.Register(miners.NewDirectoryMiner(fetcher, paginator, logger))
	registry.Register(miners.NewDocumentMiner(fetcher, extractor, logger))
	registry.Register(miners.NewFileMiner(extractor, logger))
	registry.Register(miners.NewVendorCatalogMiner(config.Crawler, logger))

	// The AI miner is optional: without a working LLM provider it stays
	// unregistered and the registry answers with a not_available no-op.
	if llmService, err := llm.NewService(ctx, config, logger); err != nil {
		logger.Warn().Err(err).Msg("LLM service unavailable, AI miner disabled")
	} else {
		registry.Register(miners.NewAIMiner(fetcher, llmService, logger))
	}

	aggregator := aggregate.NewService(storageManager, config.Aggregation, logger)
	orchestratorSvc := orchestrator.NewService(
		storageManager, registry, analyzerSvc, paginator, aggregator, fetcher, config, logger)

	wsHandler := handlers.NewWebSocketHandler(storageManager.JobStorage(), logger)
	orchestratorSvc.Progress = wsHandler.Broadcast

	return &App{
		Config:         config,
		Logger:         logger,
		StorageManager: storageManager,
		Cache:          htmlCache,
		Fetcher:        fetcher,
		Registry:       registry,
		Aggregator:     aggregator,
		Orchestrator:   orchestratorSvc,
		JobHandler: handlers.NewJobHandler(
			storageManager.JobStorage(), storageManager.ResultStorage(), orchestratorSvc, logger),
		ResultsHandler: handlers.NewResultsHandler(storageManager.ResultStorage(), logger),
		WSHandler:      wsHandler,
	}, nil
}

// Close releases storage and cache resources
func (a *App) Close() error {
	var firstErr error
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			firstErr = err
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
