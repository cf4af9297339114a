package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// --- mock connector ---

type mockConnector struct {
	name   string
	papers []types.Paper
	err    error
	delay  time.Duration
}

func (m *mockConnector) Name() string { return m.name }

func (m *mockConnector) Search(ctx context.Context, _ string, maxResults int) ([]types.Paper, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	out := append([]types.Paper(nil), m.papers...)
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out, nil
}

type recordedSearch struct {
	query   string
	sources []string
	results int
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedSearch
}

func (f *fakeRecorder) RecordSearch(_ context.Context, query string, sources []string, results int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedSearch{query: query, sources: sources, results: results})
}

func papers(source string, n int) []types.Paper {
	var out []types.Paper
	for i := 0; i < n; i++ {
		out = append(out, types.Paper{
			Title:  fmt.Sprintf("%s paper %d", source, i),
			Source: source,
			Year:   2018 + i,
		})
	}
	return out
}

// --- Search ---

func TestSearchEmptyQuery(t *testing.T) {
	agg := NewAggregator(&mockConnector{name: "arxiv"})
	_, err := agg.Search(context.Background(), "   ", nil, 10)
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("err = %v, want ErrEmptyQuery", err)
	}
	if len(agg.History()) != 0 {
		t.Error("empty query should not be recorded")
	}
}

func TestSearchDefaultSources(t *testing.T) {
	agg := NewAggregator(
		&mockConnector{name: types.SourceArxiv, papers: papers("arxiv", 2)},
		&mockConnector{name: types.SourceWeb, papers: papers("web", 3)},
		&mockConnector{name: types.SourceScholar, papers: papers("scholar", 4)},
	)

	out, err := agg.Search(context.Background(), "transformers", nil, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.TotalFound != 5 {
		t.Errorf("TotalFound = %d, want 5 (arxiv + web only)", out.TotalFound)
	}
	if len(out.SourcesSearched) != 2 {
		t.Errorf("SourcesSearched = %v, want two sources", out.SourcesSearched)
	}
}

func TestSearchTagsSearchSource(t *testing.T) {
	agg := NewAggregator(
		&mockConnector{name: "arxiv", papers: papers("arXiv", 2)},
		&mockConnector{name: "web", papers: papers("web", 1)},
	)

	out, err := agg.Search(context.Background(), "q", []string{"arxiv", "web"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	counts := map[string]int{}
	for _, p := range out.Papers {
		counts[p.SearchSource]++
	}
	if counts["arxiv"] != 2 || counts["web"] != 1 {
		t.Errorf("search_source counts = %v", counts)
	}
}

func TestSearchCountEqualsSumOfSuccessfulSources(t *testing.T) {
	agg := NewAggregator(
		&mockConnector{name: "arxiv", papers: papers("arxiv", 4)},
		&mockConnector{name: "web", err: errors.New("network error")},
		&mockConnector{name: "scholar", papers: papers("scholar", 3)},
	)

	out, err := agg.Search(context.Background(), "q", []string{"arxiv", "web", "scholar"}, 10)
	if err != nil {
		t.Fatalf("Search should not fail entirely: %v", err)
	}
	if out.TotalFound != 7 {
		t.Errorf("TotalFound = %d, want 7", out.TotalFound)
	}
	if len(out.Papers) != out.TotalFound {
		t.Errorf("len(Papers) = %d, TotalFound = %d", len(out.Papers), out.TotalFound)
	}
	if len(out.Errors) != 1 || out.Errors[0].Source != "web" {
		t.Fatalf("Errors = %+v, want one web error", out.Errors)
	}
	if out.Errors[0].Error != "network error" {
		t.Errorf("Error = %q", out.Errors[0].Error)
	}
}

func TestSearchUnknownSource(t *testing.T) {
	agg := NewAggregator(&mockConnector{name: "arxiv", papers: papers("arxiv", 1)})

	out, err := agg.Search(context.Background(), "q", []string{"arxiv", "nope"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if out.TotalFound != 1 {
		t.Errorf("TotalFound = %d, want 1", out.TotalFound)
	}
	if len(out.Errors) != 1 || out.Errors[0].Source != "nope" {
		t.Errorf("Errors = %+v, want unknown source error", out.Errors)
	}
}

func TestSearchCompletionOrder(t *testing.T) {
	agg := NewAggregator(
		&mockConnector{name: "slow", papers: papers("slow", 1), delay: 50 * time.Millisecond},
		&mockConnector{name: "fast", papers: papers("fast", 1)},
	)

	out, err := agg.Search(context.Background(), "q", []string{"slow", "fast"}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(out.Papers) != 2 {
		t.Fatalf("len(Papers) = %d, want 2", len(out.Papers))
	}
	if out.Papers[0].SearchSource != "fast" {
		t.Errorf("first paper from %q, want the faster source", out.Papers[0].SearchSource)
	}
}

func TestSearchBoundedWorkers(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0
	gate := func(name string) Connector {
		return &funcConnector{name: name, fn: func() {
			mu.Lock()
			active++
			peak = max(peak, active)
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}}
	}
	agg := NewAggregator(gate("a"), gate("b"), gate("c"), gate("d"))
	agg.Workers = 2

	if _, err := agg.Search(context.Background(), "q", []string{"a", "b", "c", "d"}, 5); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

type funcConnector struct {
	name string
	fn   func()
}

func (f *funcConnector) Name() string { return f.name }

func (f *funcConnector) Search(context.Context, string, int) ([]types.Paper, error) {
	f.fn()
	return []types.Paper{{Title: f.name}}, nil
}

func TestSearchRecordsHistoryAndRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	agg := NewAggregator(&mockConnector{name: "arxiv", papers: papers("arxiv", 3)})
	agg.Recorder = rec
	agg.Logger = zaptest.NewLogger(t)

	if _, err := agg.Search(context.Background(), "graph neural networks", []string{"arxiv"}, 10); err != nil {
		t.Fatalf("Search: %v", err)
	}

	hist := agg.History()
	if len(hist) != 1 {
		t.Fatalf("len(History) = %d, want 1", len(hist))
	}
	if hist[0].Query != "graph neural networks" || hist[0].ResultsCount != 3 {
		t.Errorf("History[0] = %+v", hist[0])
	}
	if len(rec.calls) != 1 || rec.calls[0].results != 3 {
		t.Errorf("recorder calls = %+v", rec.calls)
	}
}

// --- SearchByCriteria ---

func TestSearchByCriteriaYearFilter(t *testing.T) {
	agg := NewAggregator(&mockConnector{name: "arxiv", papers: []types.Paper{
		{Title: "old", Year: 2015},
		{Title: "mid", Year: 2021},
		{Title: "new", Year: 2024},
		{Title: "unknown"},
	}})

	out, err := agg.SearchByCriteria(context.Background(), Criteria{
		Keywords: []string{"machine", "learning"},
		YearMin:  2020,
		YearMax:  2023,
		Sources:  []string{"arxiv"},
	})
	if err != nil {
		t.Fatalf("SearchByCriteria: %v", err)
	}
	if out.TotalFound != 1 || out.Papers[0].Title != "mid" {
		t.Errorf("Papers = %+v, want only 'mid'", out.Papers)
	}
	if out.Query != "machine learning" {
		t.Errorf("Query = %q, want joined keywords", out.Query)
	}
}

func TestSearchByCriteriaNoBounds(t *testing.T) {
	agg := NewAggregator(&mockConnector{name: "arxiv", papers: []types.Paper{{Title: "a"}, {Title: "b", Year: 2001}}})

	out, err := agg.SearchByCriteria(context.Background(), Criteria{Keywords: []string{"x"}, Sources: []string{"arxiv"}})
	if err != nil {
		t.Fatalf("SearchByCriteria: %v", err)
	}
	if out.TotalFound != 2 {
		t.Errorf("TotalFound = %d, want 2", out.TotalFound)
	}
}

func TestSearchRelated(t *testing.T) {
	agg := NewAggregator(
		&mockConnector{name: "arxiv", papers: papers("arxiv", 10)},
		&mockConnector{name: "web", papers: papers("web", 10)},
	)
	got, err := agg.SearchRelated(context.Background(), "Attention Is All You Need", 0)
	if err != nil {
		t.Fatalf("SearchRelated: %v", err)
	}
	if len(got.Papers) != 10 || got.TotalFound != 10 {
		t.Errorf("papers = %d, total = %d, want 10 (5 per source)", len(got.Papers), got.TotalFound)
	}
}

func TestSearchRelatedKeepsSourceErrors(t *testing.T) {
	agg := NewAggregator(
		&mockConnector{name: "arxiv", papers: papers("arxiv", 3)},
		&mockConnector{name: "web", err: errors.New("rate limited")},
	)
	got, err := agg.SearchRelated(context.Background(), "Attention Is All You Need", 3)
	if err != nil {
		t.Fatalf("SearchRelated: %v", err)
	}
	if len(got.Papers) != 3 {
		t.Errorf("papers = %d, want 3", len(got.Papers))
	}
	if len(got.Errors) != 1 || got.Errors[0].Source != "web" {
		t.Errorf("errors = %+v, want one web error", got.Errors)
	}
	if len(got.SourcesSearched) != 1 || got.SourcesSearched[0] != "arxiv" {
		t.Errorf("sources searched = %v, want [arxiv]", got.SourcesSearched)
	}
}

// --- Statistics ---

func TestStatistics(t *testing.T) {
	agg := NewAggregator(&mockConnector{name: "arxiv", papers: papers("arxiv", 4)})

	if s := agg.Statistics(); s.TotalSearches != 0 || s.AverageResults != 0 {
		t.Errorf("empty Statistics = %+v", s)
	}

	for i := 0; i < 7; i++ {
		if _, err := agg.Search(context.Background(), fmt.Sprintf("q%d", i), []string{"arxiv"}, 2); err != nil {
			t.Fatal(err)
		}
	}
	s := agg.Statistics()
	if s.TotalSearches != 7 {
		t.Errorf("TotalSearches = %d, want 7", s.TotalSearches)
	}
	if s.TotalResults != 14 {
		t.Errorf("TotalResults = %d, want 14", s.TotalResults)
	}
	if s.AverageResults != 2 {
		t.Errorf("AverageResults = %f, want 2", s.AverageResults)
	}
	want := []string{"q2", "q3", "q4", "q5", "q6"}
	if fmt.Sprint(s.RecentQueries) != fmt.Sprint(want) {
		t.Errorf("RecentQueries = %v, want %v", s.RecentQueries, want)
	}
}

// --- Deduplicate ---

func TestDeduplicateByIdentifier(t *testing.T) {
	in := []types.Paper{
		{Identifier: "2301.07041", Title: "Paper A", Source: "arXiv"},
		{Identifier: "2301.07041", Title: "Paper A (from S2)", Source: "semantic_scholar", Citations: types.IntPtr(40)},
		{Identifier: "2301.99999", Title: "Paper B", Source: "arXiv"},
	}

	merged, removed := Deduplicate(in)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if len(merged) != 2 {
		t.Fatalf("len(merged) = %d, want 2", len(merged))
	}
	if merged[0].CitationCount() != 40 {
		t.Errorf("merged citations = %d, want 40", merged[0].CitationCount())
	}
	if merged[0].Source != "arXiv,semantic_scholar" {
		t.Errorf("merged source = %q", merged[0].Source)
	}
}

func TestDeduplicateByTitle(t *testing.T) {
	in := []types.Paper{
		{Identifier: "1706.03762", Title: "Attention Is All You Need", Source: "arXiv"},
		{Identifier: "https://example.com/x", Title: "attention is all you need!", Source: "web", Snippet: "s"},
	}

	merged, removed := Deduplicate(in)
	if removed != 1 || len(merged) != 1 {
		t.Fatalf("removed=%d len=%d, want 1 and 1", removed, len(merged))
	}
	if merged[0].Snippet != "s" {
		t.Error("empty snippet should be filled from the duplicate")
	}
}

func TestDeduplicateChainsThroughMergedTitle(t *testing.T) {
	in := []types.Paper{
		{Identifier: "W123", Title: "Graph Attention Networks", Source: "openalex"},
		{Identifier: "w123", Title: "Graph attention networks (preprint)", Source: "semantic_scholar"},
		{Title: "Graph Attention Networks (Preprint)", Source: "web", URL: "https://example.com/gat"},
	}

	merged, removed := Deduplicate(in)
	if removed != 2 || len(merged) != 1 {
		t.Fatalf("removed=%d len=%d, want 2 and 1", removed, len(merged))
	}
	if merged[0].URL != "https://example.com/gat" {
		t.Errorf("URL = %q, want it filled from the web copy", merged[0].URL)
	}
}

func TestDeduplicateNoDuplicates(t *testing.T) {
	merged, removed := Deduplicate([]types.Paper{{Title: "A"}, {Title: "B"}})
	if removed != 0 || len(merged) != 2 {
		t.Errorf("removed=%d len=%d, want 0 and 2", removed, len(merged))
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Attention Is All You Need", "attention is all you need"},
		{"BERT: Pre-training of  Deep", "bert pretraining of deep"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalizeTitle(tt.input); got != tt.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
