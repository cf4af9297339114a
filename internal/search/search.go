// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries academic and web APIs through connectors and
// aggregates their results.
//
// The Aggregator fans a query out to one worker per requested source on a
// bounded pool. Results are merged in completion order and tagged with the
// source that produced them. A failing source is recorded in
// Outcome.Errors and never removes results from other sources.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Connector searches a single external API. Each connector (arXiv, Serper
// web, Serper scholar, Semantic Scholar, OpenAlex) implements this interface.
type Connector interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error)
}

// Recorder receives one notification per aggregated search.
type Recorder interface {
	RecordSearch(ctx context.Context, query string, sources []string, results int, elapsed time.Duration)
}

// ErrEmptyQuery is returned when a search names no terms.
var ErrEmptyQuery = errors.New("query is empty: provide a research question")

// DefaultSources are queried when a call names none.
var DefaultSources = []string{types.SourceArxiv, types.SourceWeb}

const defaultMaxResults = 10

// SourceError records one connector failure.
type SourceError struct {
	Source string `json:"source" yaml:"source"`
	Error  string `json:"error" yaml:"error"`
}

// Outcome is the merged result of one aggregated search.
type Outcome struct {
	Query           string        `json:"query" yaml:"query"`
	SourcesSearched []string      `json:"sources_searched" yaml:"sources_searched"`
	Papers          []types.Paper `json:"papers" yaml:"papers"`
	TotalFound      int           `json:"total_found" yaml:"total_found"`
	Errors          []SourceError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// HistoryEntry is one line of the aggregator's search log.
type HistoryEntry struct {
	Query        string        `json:"query"`
	Sources      []string      `json:"sources"`
	ResultsCount int           `json:"results_count"`
	Duration     time.Duration `json:"duration"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Aggregator runs connectors concurrently and keeps a search history.
// Configure Workers, Logger and Recorder before the first call.
type Aggregator struct {
	// Workers bounds concurrent connector calls. Zero means one worker
	// per requested source.
	Workers int

	Logger   *zap.Logger
	Recorder Recorder

	connectors map[string]Connector

	mu      sync.Mutex
	history []HistoryEntry
}

// NewAggregator registers the given connectors by name.
func NewAggregator(connectors ...Connector) *Aggregator {
	a := &Aggregator{connectors: make(map[string]Connector, len(connectors))}
	for _, c := range connectors {
		a.connectors[c.Name()] = c
	}
	return a
}

// Sources returns the names of the registered connectors.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.connectors))
	for name := range a.connectors {
		names = append(names, name)
	}
	return names
}

// Search queries every named source (DefaultSources when sources is empty)
// with maxResults per source. The returned error is non-nil only for an
// empty query; per-source failures are reported in Outcome.Errors.
func (a *Aggregator) Search(ctx context.Context, query string, sources []string, maxResults int) (Outcome, error) {
	if strings.TrimSpace(query) == "" {
		return Outcome{}, ErrEmptyQuery
	}
	if len(sources) == 0 {
		sources = DefaultSources
	}
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	ctx, span := otel.Tracer("research-assistant/search").Start(ctx, "search.aggregate")
	defer span.End()
	span.SetAttributes(
		attribute.String("query", query),
		attribute.StringSlice("sources", sources),
	)

	logger := a.logger()
	start := time.Now()
	out := Outcome{Query: query}

	var mu sync.Mutex
	var g errgroup.Group
	limit := a.Workers
	if limit <= 0 {
		limit = len(sources)
	}
	g.SetLimit(limit)

	for _, name := range sources {
		g.Go(func() error {
			papers, err := a.searchOne(ctx, name, query, maxResults)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("source failed", zap.String("source", name), zap.Error(err))
				out.Errors = append(out.Errors, SourceError{Source: name, Error: err.Error()})
				return nil
			}
			out.SourcesSearched = append(out.SourcesSearched, name)
			out.Papers = append(out.Papers, papers...)
			out.TotalFound += len(papers)
			return nil
		})
	}
	g.Wait()

	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("results", out.TotalFound))

	a.mu.Lock()
	a.history = append(a.history, HistoryEntry{
		Query:        query,
		Sources:      append([]string(nil), sources...),
		ResultsCount: out.TotalFound,
		Duration:     elapsed,
		Timestamp:    start,
	})
	a.mu.Unlock()

	if a.Recorder != nil {
		a.Recorder.RecordSearch(ctx, query, sources, out.TotalFound, elapsed)
	}
	logger.Debug("search complete",
		zap.String("query", query),
		zap.Int("results", out.TotalFound),
		zap.Int("failed_sources", len(out.Errors)),
		zap.Duration("elapsed", elapsed))

	return out, nil
}

// searchOne runs a single connector and tags its results.
func (a *Aggregator) searchOne(ctx context.Context, name, query string, maxResults int) ([]types.Paper, error) {
	c, ok := a.connectors[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	papers, err := c.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	for i := range papers {
		papers[i].SearchSource = name
	}
	return papers, nil
}

// Criteria describes a keyword search with optional year bounds.
type Criteria struct {
	Keywords   []string `json:"keywords" yaml:"keywords"`
	YearMin    int      `json:"year_min,omitempty" yaml:"year_min,omitempty"`
	YearMax    int      `json:"year_max,omitempty" yaml:"year_max,omitempty"`
	Sources    []string `json:"sources,omitempty" yaml:"sources,omitempty"`
	MaxResults int      `json:"max_results,omitempty" yaml:"max_results,omitempty"`
}

// SearchByCriteria joins the keywords into one query, searches, and keeps
// papers within the year bounds. A paper with an unknown year (0) fails any
// minimum bound. TotalFound is recomputed after filtering.
func (a *Aggregator) SearchByCriteria(ctx context.Context, c Criteria) (Outcome, error) {
	out, err := a.Search(ctx, strings.Join(c.Keywords, " "), c.Sources, c.MaxResults)
	if err != nil {
		return out, err
	}
	if c.YearMin == 0 && c.YearMax == 0 {
		return out, nil
	}

	var kept []types.Paper
	for _, p := range out.Papers {
		if c.YearMin > 0 && p.Year < c.YearMin {
			continue
		}
		if c.YearMax > 0 && p.Year > c.YearMax {
			continue
		}
		kept = append(kept, p)
	}
	out.Papers = kept
	out.TotalFound = len(kept)
	return out, nil
}

// SearchRelated searches arXiv and the web for papers similar to title.
// The Outcome keeps per-source errors like Search does.
func (a *Aggregator) SearchRelated(ctx context.Context, title string, maxResults int) (Outcome, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	return a.Search(ctx, title, []string{types.SourceArxiv, types.SourceWeb}, maxResults)
}

// Statistics summarizes the search history.
type Statistics struct {
	TotalSearches  int      `json:"total_searches"`
	TotalResults   int      `json:"total_results"`
	AverageResults float64  `json:"average_results"`
	RecentQueries  []string `json:"recent_queries"`
}

// Statistics reports totals over every search so far and the last five queries.
func (a *Aggregator) Statistics() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()

	var s Statistics
	s.TotalSearches = len(a.history)
	for _, h := range a.history {
		s.TotalResults += h.ResultsCount
	}
	if s.TotalSearches > 0 {
		s.AverageResults = float64(s.TotalResults) / float64(s.TotalSearches)
	}
	from := max(0, len(a.history)-5)
	for _, h := range a.history[from:] {
		s.RecentQueries = append(s.RecentQueries, h.Query)
	}
	return s
}

// History returns a copy of the search log.
func (a *Aggregator) History() []HistoryEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]HistoryEntry(nil), a.history...)
}

func (a *Aggregator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
