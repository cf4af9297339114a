// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrNoPapers is returned when the pipeline is given nothing to analyze.
var ErrNoPapers = errors.New("no papers to analyze")

// Stage limits.
const (
	topPapers      = 10
	stagePapers    = 5
	maxGaps        = 5
	findingTextLen = 500
	synthTextLen   = 300
	compareTextLen = 200
	synthAuthors   = 2
)

// Placeholders used when an LLM call fails.
const (
	findingUnavailable = "Unable to extract"
	gapsUnavailable    = "Unable to identify gaps"
	compareUnavailable = "Analysis unavailable"
)

// Recorder receives one notification per pipeline run.
type Recorder interface {
	RecordAnalysis(ctx context.Context, papers int, elapsed time.Duration)
}

// ScoredPaper is a paper with its relevance to the query.
type ScoredPaper struct {
	types.Paper `yaml:",inline"`
	Score       float64 `json:"relevance_score" yaml:"relevance_score"`
}

// Finding is the key result extracted from one paper.
type Finding struct {
	Paper   string `json:"paper" yaml:"paper"`
	Finding string `json:"finding" yaml:"finding"`
}

// Report is the output of one pipeline run.
type Report struct {
	Query          string        `json:"query" yaml:"query"`
	PapersAnalyzed int           `json:"papers_analyzed" yaml:"papers_analyzed"`
	Relevance      []float64     `json:"relevance" yaml:"relevance"`
	TopPapers      []ScoredPaper `json:"top_papers" yaml:"top_papers"`
	Findings       []Finding     `json:"findings" yaml:"findings"`
	Synthesis      string        `json:"synthesis" yaml:"synthesis"`
	Gaps           []string      `json:"gaps" yaml:"gaps"`
}

// Pipeline runs the four analysis stages in order. LLM failures degrade to
// placeholder text; they never stop the pipeline.
type Pipeline struct {
	LLM      llm.Generator
	Logger   *zap.Logger
	Recorder Recorder
}

// Run scores every paper, keeps the ten most relevant, and extracts
// findings, a synthesis, and research gaps from them.
func (p *Pipeline) Run(ctx context.Context, papers []types.Paper, query string) (Report, error) {
	if len(papers) == 0 {
		return Report{}, ErrNoPapers
	}

	ctx, span := otel.Tracer("research-assistant/analysis").Start(ctx, "analysis.pipeline")
	defer span.End()
	span.SetAttributes(attribute.Int("papers", len(papers)))

	start := time.Now()
	logger := p.logger()

	r := Report{Query: query, PapersAnalyzed: len(papers)}

	r.Relevance = ScoreAll(papers, query)
	r.TopPapers = rank(papers, r.Relevance, topPapers)
	logger.Debug("relevance stage done", zap.Int("top", len(r.TopPapers)))

	top := make([]types.Paper, len(r.TopPapers))
	for i, sp := range r.TopPapers {
		top[i] = sp.Paper
	}

	r.Findings = p.findings(ctx, top)
	logger.Debug("findings stage done", zap.Int("findings", len(r.Findings)))

	r.Synthesis = p.synthesize(ctx, top, query)
	logger.Debug("synthesis stage done", zap.Int("chars", len(r.Synthesis)))

	r.Gaps = p.gaps(ctx, top, query)
	logger.Debug("gaps stage done", zap.Int("gaps", len(r.Gaps)))

	if p.Recorder != nil {
		p.Recorder.RecordAnalysis(ctx, len(papers), time.Since(start))
	}
	return r, nil
}

// rank returns the n highest-scoring papers. Ties keep input order.
func rank(papers []types.Paper, scores []float64, n int) []ScoredPaper {
	scored := make([]ScoredPaper, len(papers))
	for i := range papers {
		scored[i] = ScoredPaper{Paper: papers[i], Score: scores[i]}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > n {
		scored = scored[:n]
	}
	return scored
}

// findings asks for one key finding per paper among the first five,
// skipping papers with no summary or snippet.
func (p *Pipeline) findings(ctx context.Context, papers []types.Paper) []Finding {
	var out []Finding
	for _, paper := range papers[:min(stagePapers, len(papers))] {
		text := truncateRunes(paper.Text(), findingTextLen)
		if text == "" {
			continue
		}
		f := Finding{Paper: titleOrUnknown(paper), Finding: findingUnavailable}
		reply, err := p.generate(ctx, findingPromptTmpl, paperPrompt{Title: f.Paper, Text: text})
		if err == nil {
			f.Finding = strings.TrimSpace(reply)
		}
		out = append(out, f)
	}
	return out
}

func (p *Pipeline) synthesize(ctx context.Context, papers []types.Paper, query string) string {
	var views []paperPrompt
	for _, paper := range papers[:min(stagePapers, len(papers))] {
		views = append(views, paperPrompt{
			Title:   titleOrUnknown(paper),
			Year:    yearOrUnknown(paper.Year),
			Authors: authorsOrUnknown(paper.Authors, synthAuthors),
			Text:    truncateRunes(paper.Text(), synthTextLen),
		})
	}
	reply, err := p.generate(ctx, synthesisPromptTmpl, struct {
		Query  string
		Papers []paperPrompt
	}{query, views})
	if err != nil {
		return fmt.Sprintf("Synthesis generation failed: %v", err)
	}
	return reply
}

func (p *Pipeline) gaps(ctx context.Context, papers []types.Paper, query string) []string {
	var titles []string
	for _, paper := range papers[:min(stagePapers, len(papers))] {
		titles = append(titles, paper.Title)
	}
	reply, err := p.generate(ctx, gapsPromptTmpl, struct {
		Query  string
		Titles []string
	}{query, titles})
	if err != nil {
		return []string{gapsUnavailable}
	}
	return ParseListItems(reply, maxGaps)
}

// ParseListItems keeps the lines of text that start with a digit or a dash,
// trimmed, up to limit.
func ParseListItems(text string, limit int) []string {
	var items []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := []rune(line)[0]
		if !unicode.IsDigit(first) && first != '-' {
			continue
		}
		items = append(items, line)
		if len(items) == limit {
			break
		}
	}
	return items
}

func (p *Pipeline) generate(ctx context.Context, t *template.Template, data any) (string, error) {
	if p.LLM == nil {
		return "", errors.New("no language model configured")
	}
	prompt, err := llm.Render(t, data)
	if err != nil {
		return "", err
	}
	reply, err := p.LLM.Generate(ctx, llm.Request{Prompt: prompt})
	if err != nil {
		p.logger().Warn("analysis call failed", zap.String("stage", t.Name()), zap.Error(err))
		return "", err
	}
	return reply, nil
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func titleOrUnknown(p types.Paper) string {
	if p.Title == "" {
		return "Unknown"
	}
	return p.Title
}

func yearOrUnknown(year int) string {
	if year == 0 {
		return "Unknown"
	}
	return strconv.Itoa(year)
}

func authorsOrUnknown(authors []string, n int) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	return strings.Join(authors[:min(n, len(authors))], ", ")
}
