// Package cli provides the command-line interface for estctiger.
package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/estctiger/estctiger/config"
	"github.com/estctiger/estctiger/internal/generator"
	"github.com/estctiger/estctiger/internal/intent"
	"github.com/estctiger/estctiger/internal/llm"
	"github.com/estctiger/estctiger/internal/logging"
	"github.com/estctiger/estctiger/internal/market"
	"github.com/estctiger/estctiger/internal/memory"
	"github.com/estctiger/estctiger/internal/outputcheck"
	"github.com/estctiger/estctiger/internal/search"
	"github.com/estctiger/estctiger/internal/security"
	"github.com/estctiger/estctiger/internal/workflow"
)

// app bundles the wired components shared by the serve and chat commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *memory.Store
	es       *search.ESClient
	fetcher  *market.Fetcher
	pipeline *workflow.Pipeline
}

// newApp builds the full pipeline from configuration. A missing fallback
// corpus is tolerated; a missing model credential is not.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	llmClient, err := llm.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store := memory.NewStore(cfg.MaxSessions, time.Duration(cfg.SessionTimeoutHours)*time.Hour, logger)
	es := search.NewESClient(cfg, logger)

	corpus, err := search.LoadFallbackCorpus(cfg.FallbackCorpusPath, logger)
	if err != nil {
		logger.Warn("fallback corpus unavailable", zap.Error(err))
		corpus = nil
	}
	retriever := search.NewRetriever(es, corpus, logger)

	fetcher := market.NewFetcher(cfg.FinnhubAPIKey, cfg.Symbol, logger)
	classifier := intent.NewClassifier(cfg.Symbol, cfg.CompanyName)

	gen := generator.New(retriever, fetcher, llmClient, store, classifier, cfg.Symbol, logger)
	pipeline := workflow.New(
		security.NewGate(llmClient, logger),
		gen,
		outputcheck.NewGate(logger),
		logger,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		es:       es,
		fetcher:  fetcher,
		pipeline: pipeline,
	}, nil
}
