// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/analysis"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/observability"
	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const tokenEncoding = "cl100k_base"

// app is the set of components one command works with. Everything shares
// a single observability Manager so the exported snapshot covers the whole
// command.
type app struct {
	cfg       types.Config
	providers *observability.Providers
	obs       *observability.Manager
	model     llm.Generator
	search    *search.Aggregator
	pipeline  *analysis.Pipeline
	bank      memory.Bank
	tools     *tools.Registry
	orch      *orchestrator.Orchestrator
}

// newApp builds the components from cfg. A missing LLM key is not fatal:
// analysis degrades to placeholders and planning uses the fallback plan.
// The result is also stored in current so it is closed when the command
// ends. On failure everything opened so far is released.
func newApp(ctx context.Context, c types.Config) (_ *app, err error) {
	a := &app{cfg: c}

	if a.providers, err = observability.Setup(ctx, c.Observability, os.Stderr); err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			a.release(context.Background())
		}
	}()
	if a.obs, err = observability.New(nil, logger); err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: c.Search.Timeout}

	model, err := llm.New(ctx, c.LLM, client, logger)
	if err != nil {
		logger.Warn("language model unavailable", zap.Error(err))
	} else {
		a.model = &llm.Instrumented{
			Next:     model,
			Provider: string(c.LLM.Provider),
			Recorder: a.obs,
			Logger:   logger,
		}
	}

	a.search = search.NewAggregator(connectors(c.Search, client)...)
	a.search.Workers = c.Search.Workers
	a.search.Logger = logger
	a.search.Recorder = a.obs

	a.pipeline = &analysis.Pipeline{LLM: a.model, Logger: logger, Recorder: a.obs}

	bank, err := memory.Open(c.Memory)
	if err != nil {
		return nil, fmt.Errorf("opening memory bank: %w", err)
	}
	a.bank = bank

	a.tools = &tools.Registry{
		Searcher:   sourcesDefault{a.search, c.Search.Sources},
		Analyzer:   a.pipeline,
		Memory:     a.bank,
		OutputsDir: c.OutputsDir,
		Observer:   a.obs,
		Logger:     logger,
	}

	a.orch = &orchestrator.Orchestrator{
		LLM:         a.model,
		Tools:       a.tools,
		Memory:      a.bank,
		Observer:    a.obs,
		Logger:      logger,
		CountTokens: orchestrator.LazyTiktokenCounter(tokenEncoding, logger),
	}

	current = a
	return a, nil
}

// connectors returns arXiv, Semantic Scholar and OpenAlex, plus the two
// Serper connectors when a key is configured.
func connectors(sc types.SearchConfig, client *http.Client) []search.Connector {
	cs := []search.Connector{
		&search.ArxivConnector{Client: client, UserAgent: sc.UserAgent, Logger: logger},
		&search.SemanticScholarConnector{Client: client, APIKey: sc.SemanticScholarAPIKey, UserAgent: sc.UserAgent, Logger: logger},
		&search.OpenAlexConnector{Client: client, Email: sc.OpenAlexEmail, UserAgent: sc.UserAgent, Logger: logger},
	}
	if web, err := search.NewWebConnector(client, sc.SerperAPIKey); err == nil {
		web.Logger = logger
		cs = append(cs, web)
	} else {
		logger.Debug("web search disabled", zap.Error(err))
	}
	if scholar, err := search.NewScholarConnector(client, sc.SerperAPIKey); err == nil {
		scholar.Logger = logger
		cs = append(cs, scholar)
	}
	return cs
}

// sourcesDefault substitutes the configured sources when a tool call
// names none.
type sourcesDefault struct {
	*search.Aggregator
	sources []string
}

func (s sourcesDefault) Search(ctx context.Context, query string, sources []string, maxResults int) (search.Outcome, error) {
	if len(sources) == 0 {
		sources = s.sources
	}
	return s.Aggregator.Search(ctx, query, sources, maxResults)
}

// Close exports the metrics snapshot, then releases telemetry and the bank.
func (a *app) Close(ctx context.Context) {
	if path := a.cfg.Observability.ExportPath; path != "" {
		if err := a.obs.ExportJSON(path); err != nil {
			logger.Warn("exporting metrics", zap.Error(err))
		}
	}
	if totals, err := a.providers.CounterTotals(ctx); err == nil {
		logger.Debug("telemetry counters", zap.Any("totals", totals))
	}
	a.release(ctx)
}

// release flushes spans and closes whatever newApp managed to open.
func (a *app) release(ctx context.Context) {
	if a.providers != nil {
		if err := a.providers.Shutdown(ctx); err != nil {
			logger.Warn("shutting down telemetry", zap.Error(err))
		}
	}
	if a.bank != nil {
		if err := a.bank.Close(); err != nil {
			logger.Warn("closing memory bank", zap.Error(err))
		}
	}
}
