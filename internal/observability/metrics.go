// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"fmt"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Perf summarizes latency samples in seconds.
type Perf struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_seconds"`
	StdDev float64 `json:"stddev_seconds"`
	Min    float64 `json:"min_seconds"`
	Max    float64 `json:"max_seconds"`
}

// Metrics is a point-in-time summary of a Manager.
type Metrics struct {
	Counters    Counters      `json:"counters"`
	Search      Perf          `json:"search"`
	Analysis    Perf          `json:"analysis"`
	API         Perf          `json:"api"`
	TotalTraces int           `json:"total_traces"`
	Uptime      time.Duration `json:"uptime_ns"`
	Start       time.Time     `json:"start"`
}

// Metrics summarizes counters and latency samples.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		Counters:    m.counters,
		Search:      summarize(m.search),
		Analysis:    summarize(m.analysis),
		API:         summarize(m.api),
		TotalTraces: len(m.traces),
		Uptime:      time.Since(m.start),
		Start:       m.start,
	}
}

// summarize leaves StdDev at zero below two samples; stat.MeanStdDev
// returns NaN there, which encoding/json rejects.
func summarize(samples []float64) Perf {
	p := Perf{Count: len(samples)}
	switch len(samples) {
	case 0:
		return p
	case 1:
		p.Mean = samples[0]
	default:
		p.Mean, p.StdDev = stat.MeanStdDev(samples, nil)
	}
	p.Min = floats.Min(samples)
	p.Max = floats.Max(samples)
	return p
}

// Report renders the current metrics as a markdown document.
func (m *Manager) Report() string {
	return RenderReport(m.Metrics())
}

// RenderReport renders mt as a markdown document.
func RenderReport(mt Metrics) string {
	c := mt.Counters

	var b strings.Builder
	b.WriteString("# Research Assistant Performance Report\n\n")
	fmt.Fprintf(&b, "Session started: %s\n", mt.Start.Format(time.RFC3339))
	fmt.Fprintf(&b, "Uptime: %s\n\n", mt.Uptime.Round(time.Second))

	b.WriteString("## Activity\n\n")
	b.WriteString("| Metric | Count |\n|---|---|\n")
	for _, row := range []struct {
		name string
		n    int64
	}{
		{"Agent calls", c.AgentCalls},
		{"Tool executions", c.ToolExecutions},
		{"Search queries", c.SearchQueries},
		{"Papers analyzed", c.PapersAnalyzed},
		{"API calls", c.APICalls},
		{"Errors", c.Errors},
	} {
		fmt.Fprintf(&b, "| %s | %d |\n", row.name, row.n)
	}

	b.WriteString("\n## Performance\n\n")
	b.WriteString("| Operation | Samples | Mean (s) | Std dev (s) | Min (s) | Max (s) |\n|---|---|---|---|---|---|\n")
	for _, row := range []struct {
		name string
		p    Perf
	}{
		{"Search", mt.Search},
		{"Analysis", mt.Analysis},
		{"API", mt.API},
	} {
		fmt.Fprintf(&b, "| %s | %d | %.2f | %.2f | %.2f | %.2f |\n",
			row.name, row.p.Count, row.p.Mean, row.p.StdDev, row.p.Min, row.p.Max)
	}

	fmt.Fprintf(&b, "\n## Health\n\n")
	total := c.AgentCalls + c.ToolExecutions + c.APICalls
	if total == 0 {
		b.WriteString("No activity recorded.\n")
	} else {
		fmt.Fprintf(&b, "Error rate: %.1f%% (%d errors over %d operations)\n",
			100*float64(c.Errors)/float64(total), c.Errors, total)
	}
	fmt.Fprintf(&b, "Traces recorded: %d\n", mt.TotalTraces)
	return b.String()
}
