// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability counts what the assistant does, keeps an
// append-only trace log, and samples search, analysis, and LLM latency.
// Every counter is mirrored into an OpenTelemetry instrument so an
// installed meter provider sees the same numbers.
//
// Manager implements search.Recorder, analysis.Recorder, and
// llm.CallRecorder, so the CLI hands one Manager to every component.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const meterName = "research-assistant"

// Trace kinds.
const (
	KindAgent = "agent"
	KindTool  = "tool"
	KindError = "error"
)

// Counters are the running totals since the Manager was created.
type Counters struct {
	AgentCalls     int64 `json:"agent_calls"`
	ToolExecutions int64 `json:"tool_executions"`
	SearchQueries  int64 `json:"search_queries"`
	PapersAnalyzed int64 `json:"papers_analyzed"`
	APICalls       int64 `json:"api_calls"`
	Errors         int64 `json:"errors"`
}

// Trace is one entry of the trace log.
type Trace struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name"`
	Action    string         `json:"action,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Success   *bool          `json:"success,omitempty"`
	Error     string         `json:"error,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// instruments mirror Counters plus latency histograms.
type instruments struct {
	agentCalls     metric.Int64Counter
	toolExecutions metric.Int64Counter
	searchQueries  metric.Int64Counter
	papersAnalyzed metric.Int64Counter
	apiCalls       metric.Int64Counter
	errors         metric.Int64Counter
	latency        metric.Float64Histogram
}

// Manager is safe for concurrent use.
type Manager struct {
	logger *zap.Logger
	inst   instruments
	start  time.Time

	mu       sync.Mutex
	counters Counters
	traces   []Trace
	search   []float64
	analysis []float64
	api      []float64
}

// New builds a Manager whose instruments come from meter. A nil meter uses
// the global meter provider.
func New(meter metric.Meter, logger *zap.Logger) (*Manager, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	inst, err := newInstruments(meter)
	if err != nil {
		return nil, err
	}
	return &Manager{logger: logger, inst: inst, start: time.Now()}, nil
}

func newInstruments(meter metric.Meter) (instruments, error) {
	var (
		inst instruments
		err  error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&inst.agentCalls, "research.agent.calls", "Agent invocations"},
		{&inst.toolExecutions, "research.tool.executions", "Tool executions"},
		{&inst.searchQueries, "research.search.queries", "Search queries run"},
		{&inst.papersAnalyzed, "research.papers.analyzed", "Papers passed through analysis"},
		{&inst.apiCalls, "research.api.calls", "LLM API calls"},
		{&inst.errors, "research.errors", "Errors recorded"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return inst, fmt.Errorf("creating counter %s: %w", c.name, err)
		}
	}
	inst.latency, err = meter.Float64Histogram("research.latency",
		metric.WithDescription("Search, analysis, and API latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating latency histogram: %w", err)
	}
	return inst, nil
}

// LogAgentCall records one agent invocation.
func (m *Manager) LogAgentCall(ctx context.Context, agent, action string, details map[string]any) {
	m.inst.agentCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("agent", agent)))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.AgentCalls++
	m.appendTrace(ctx, Trace{Kind: KindAgent, Name: agent, Action: action, Details: details})
}

// LogToolExecution records one tool call and its outcome.
func (m *Manager) LogToolExecution(ctx context.Context, tool string, params map[string]any, success bool) {
	m.inst.toolExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.Bool("success", success),
	))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.ToolExecutions++
	m.appendTrace(ctx, Trace{Kind: KindTool, Name: tool, Details: params, Success: &success})
}

// LogError records a failure in component.
func (m *Manager) LogError(ctx context.Context, component string, err error) {
	m.inst.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("component", component)))
	m.logger.Debug("error recorded", zap.String("component", component), zap.Error(err))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.Errors++
	m.appendTrace(ctx, Trace{Kind: KindError, Name: component, Error: err.Error()})
}

// RecordSearch implements search.Recorder.
func (m *Manager) RecordSearch(ctx context.Context, query string, sources []string, results int, elapsed time.Duration) {
	m.inst.searchQueries.Add(ctx, 1)
	m.inst.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("op", "search")))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.SearchQueries++
	m.search = append(m.search, elapsed.Seconds())
}

// RecordAnalysis implements analysis.Recorder.
func (m *Manager) RecordAnalysis(ctx context.Context, papers int, elapsed time.Duration) {
	m.inst.papersAnalyzed.Add(ctx, int64(papers))
	m.inst.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("op", "analysis")))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.PapersAnalyzed += int64(papers)
	m.analysis = append(m.analysis, elapsed.Seconds())
}

// RecordAPICall implements llm.CallRecorder. A failed call also counts as
// an error.
func (m *Manager) RecordAPICall(ctx context.Context, provider string, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	m.inst.apiCalls.Add(ctx, 1, attrs)
	m.inst.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("op", "api")))

	if err != nil {
		m.LogError(ctx, provider, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters.APICalls++
	m.api = append(m.api, elapsed.Seconds())
}

// appendTrace must be called with m.mu held.
func (m *Manager) appendTrace(ctx context.Context, t Trace) {
	t.ID = uuid.NewString()
	t.Timestamp = time.Now()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		t.TraceID = sc.TraceID().String()
	}
	m.traces = append(m.traces, t)
}

// Counters returns a snapshot of the running totals.
func (m *Manager) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters
}

// Traces returns the most recent limit traces, oldest first. A limit of
// zero or less returns all of them.
func (m *Manager) Traces(limit int) []Trace {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if limit > 0 && len(m.traces) > limit {
		start = len(m.traces) - limit
	}
	return append([]Trace(nil), m.traces[start:]...)
}

// Export is the document written by ExportJSON.
type Export struct {
	Metrics Metrics `json:"metrics"`
	Traces  []Trace `json:"traces"`
}

// ExportJSON writes the metrics snapshot and the full trace log to path.
func (m *Manager) ExportJSON(path string) error {
	data, err := json.MarshalIndent(Export{m.Metrics(), m.Traces(0)}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metrics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadExport loads a document written by ExportJSON.
func ReadExport(path string) (Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Export{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return Export{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return e, nil
}
