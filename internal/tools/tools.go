// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tools is the registry of named tools the orchestrator dispatches
// plan tasks to: search, analyze, memory_store, memory_retrieve, and
// file_write. Every call is recorded in the tool history before it runs;
// failures come back as a Result with Success false, never as a panic.
package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/analysis"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// Tool names.
const (
	Search         = "search"
	Analyze        = "analyze"
	MemoryStore    = "memory_store"
	MemoryRetrieve = "memory_retrieve"
	FileWrite      = "file_write"
)

// Spec describes a tool for planners and the CLI.
type Spec struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

var specs = []Spec{
	{
		Name:        Search,
		Description: "Search for academic papers and web content",
		Parameters:  map[string]string{"query": "string", "source": "arxiv|web|scholar|semantic_scholar|openalex", "max_results": "int"},
	},
	{
		Name:        Analyze,
		Description: "Analyze the papers found by the last search and extract insights",
		Parameters:  map[string]string{"query": "string", "paper_id": "string"},
	},
	{
		Name:        MemoryStore,
		Description: "Store information in long-term memory",
		Parameters:  map[string]string{"key": "string", "value": "any", "context": "string"},
	},
	{
		Name:        MemoryRetrieve,
		Description: "Retrieve information from long-term memory",
		Parameters:  map[string]string{"key": "string"},
	},
	{
		Name:        FileWrite,
		Description: "Write research findings to a file in the outputs directory",
		Parameters:  map[string]string{"filename": "string", "content": "string"},
	},
}

// Specs lists the registered tools in a fixed order.
func Specs() []Spec {
	return append([]Spec(nil), specs...)
}

// Names lists the registered tool names.
func Names() []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Result is the outcome of one tool call.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Execution is one entry in the tool history.
type Execution struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Searcher is the part of search.Aggregator the search tool needs.
type Searcher interface {
	Search(ctx context.Context, query string, sources []string, maxResults int) (search.Outcome, error)
}

// Analyzer is the part of analysis.Pipeline the analyze tool needs.
type Analyzer interface {
	Run(ctx context.Context, papers []types.Paper, query string) (analysis.Report, error)
}

// Observer is told about every tool call after it finishes.
type Observer interface {
	LogToolExecution(ctx context.Context, tool string, params map[string]any, success bool)
}

// Registry dispatches tool calls. A nil dependency makes its tools fail
// with an error result.
type Registry struct {
	Searcher   Searcher
	Analyzer   Analyzer
	Memory     memory.Bank
	OutputsDir string
	Observer   Observer
	Logger     *zap.Logger

	mu        sync.Mutex
	history   []Execution
	papers    []types.Paper
	lastQuery string
}

// Execute runs the named tool with params.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) Result {
	if !known(name) {
		return Result{Error: fmt.Sprintf("tool %s not found", name)}
	}

	r.mu.Lock()
	r.history = append(r.history, Execution{Tool: name, Parameters: params, Timestamp: time.Now()})
	r.mu.Unlock()

	var (
		res Result
		err error
	)
	switch name {
	case Search:
		res, err = r.search(ctx, params)
	case Analyze:
		res, err = r.analyze(ctx, params)
	case MemoryStore:
		res, err = r.memoryStore(ctx, params)
	case MemoryRetrieve:
		res, err = r.memoryRetrieve(ctx, params)
	case FileWrite:
		res, err = r.fileWrite(params)
	}
	if err != nil {
		res = Result{Error: err.Error()}
		r.logger().Warn("tool failed", zap.String("tool", name), zap.Error(err))
	}

	if r.Observer != nil {
		r.Observer.LogToolExecution(ctx, name, params, res.Success)
	}
	return res
}

// History returns the recorded tool calls, oldest first.
func (r *Registry) History() []Execution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Execution(nil), r.history...)
}

// Clear empties the tool history.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// Papers returns the papers from the most recent successful search.
func (r *Registry) Papers() []types.Paper {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Paper(nil), r.papers...)
}

func known(name string) bool {
	for _, s := range specs {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (r *Registry) search(ctx context.Context, params map[string]any) (Result, error) {
	if r.Searcher == nil {
		return Result{}, errors.New("search is not configured")
	}
	var p searchParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if err := required("query", p.Query); err != nil {
		return Result{}, err
	}

	out, err := r.Searcher.Search(ctx, p.Query, p.sourceList(), p.MaxResults)
	if err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	r.papers = out.Papers
	r.lastQuery = p.Query
	r.mu.Unlock()

	return Result{
		Success: true,
		Data:    out,
		Message: fmt.Sprintf("Found %d results from %s", out.TotalFound, strings.Join(out.SourcesSearched, ", ")),
	}, nil
}

func (r *Registry) analyze(ctx context.Context, params map[string]any) (Result, error) {
	if r.Analyzer == nil {
		return Result{}, errors.New("analysis is not configured")
	}

	var p analyzeParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}

	r.mu.Lock()
	papers := append([]types.Paper(nil), r.papers...)
	query := r.lastQuery
	r.mu.Unlock()

	if p.Query != "" {
		query = p.Query
	}
	if p.PaperID != "" {
		papers = byIdentifier(papers, p.PaperID)
		if len(papers) == 0 {
			return Result{}, fmt.Errorf("paper %s not among the last search results", p.PaperID)
		}
	}

	report, err := r.Analyzer.Run(ctx, papers, query)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Success: true,
		Data:    report,
		Message: fmt.Sprintf("Analyzed %d papers", report.PapersAnalyzed),
	}, nil
}

func byIdentifier(papers []types.Paper, id string) []types.Paper {
	for _, p := range papers {
		if strings.EqualFold(p.Identifier, id) {
			return []types.Paper{p}
		}
	}
	return nil
}

func (r *Registry) memoryStore(ctx context.Context, params map[string]any) (Result, error) {
	if r.Memory == nil {
		return Result{}, errors.New("memory bank is not configured")
	}
	var p memoryStoreParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if err := required("key", p.Key); err != nil {
		return Result{}, err
	}
	entry := types.MemoryEntry{
		Value:      p.Value,
		Importance: p.Importance,
		Context:    p.Context,
		Timestamp:  time.Now(),
	}
	if err := r.Memory.Store(ctx, p.Key, entry); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: fmt.Sprintf("Stored %s in long-term memory", p.Key)}, nil
}

func (r *Registry) memoryRetrieve(ctx context.Context, params map[string]any) (Result, error) {
	if r.Memory == nil {
		return Result{}, errors.New("memory bank is not configured")
	}
	var p memoryRetrieveParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if err := required("key", p.Key); err != nil {
		return Result{}, err
	}
	entry, ok, err := r.Memory.Retrieve(ctx, p.Key)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Error: fmt.Sprintf("key %s not found in memory", p.Key)}, nil
	}
	return Result{Success: true, Data: entry}, nil
}

// fileWrite only accepts local relative paths so output stays inside
// OutputsDir.
func (r *Registry) fileWrite(params map[string]any) (Result, error) {
	if r.OutputsDir == "" {
		return Result{}, errors.New("outputs directory is not configured")
	}
	var p fileWriteParams
	if err := decodeParams(params, &p); err != nil {
		return Result{}, err
	}
	if err := required("filename", p.Filename); err != nil {
		return Result{}, err
	}
	if !filepath.IsLocal(p.Filename) {
		return Result{}, fmt.Errorf("filename %q escapes the outputs directory", p.Filename)
	}

	path := filepath.Join(r.OutputsDir, p.Filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0o644); err != nil {
		return Result{}, fmt.Errorf("writing %s: %w", path, err)
	}
	return Result{Success: true, Data: path, Message: fmt.Sprintf("Written to %s", path)}, nil
}

func (r *Registry) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
