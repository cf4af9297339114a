// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/research-assistant/internal/analysis"
	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

type fakeLLM struct {
	replies []string
	err     error
	reqs    []llm.Request
}

func (f *fakeLLM) Generate(_ context.Context, req llm.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

type stubSearcher struct{ queries []string }

func (s *stubSearcher) Search(_ context.Context, query string, _ []string, _ int) (search.Outcome, error) {
	s.queries = append(s.queries, query)
	papers := []types.Paper{{Title: "Result for " + query, Summary: "abstract"}}
	return search.Outcome{Query: query, SourcesSearched: []string{"arxiv"}, Papers: papers, TotalFound: 1}, nil
}

type stubAnalyzer struct{ runs int }

func (a *stubAnalyzer) Run(_ context.Context, papers []types.Paper, query string) (analysis.Report, error) {
	a.runs++
	if len(papers) == 0 {
		return analysis.Report{}, analysis.ErrNoPapers
	}
	return analysis.Report{Query: query, PapersAnalyzed: len(papers)}, nil
}

type observed struct {
	agents []string
	errs   []error
}

func (o *observed) LogAgentCall(_ context.Context, agent, _ string, _ map[string]any) {
	o.agents = append(o.agents, agent)
}

func (o *observed) LogError(_ context.Context, _ string, err error) {
	o.errs = append(o.errs, err)
}

func newOrchestrator(t *testing.T, model llm.Generator) (*Orchestrator, *stubSearcher, *stubAnalyzer, *observed) {
	t.Helper()
	dir := t.TempDir()
	bank, err := memory.OpenJSON(filepath.Join(dir, "memory.json"))
	require.NoError(t, err)

	s, a := &stubSearcher{}, &stubAnalyzer{}
	obs := &observed{}
	reg := &tools.Registry{
		Searcher:   s,
		Analyzer:   a,
		Memory:     bank,
		OutputsDir: filepath.Join(dir, "outputs"),
	}
	return &Orchestrator{
		LLM:      model,
		Tools:    reg,
		Memory:   bank,
		Observer: obs,
		Logger:   zaptest.NewLogger(t),
	}, s, a, obs
}

const validPlan = `{
  "objective": "survey graph neural networks",
  "tasks": [
    {"id": 1, "description": "search", "agent": "SearchAgent", "tools": ["search"], "parameters": {"query": "graph neural networks"}, "priority": "high"},
    {"id": 2, "description": "analyze", "agent": "AnalysisAgent", "tools": ["analyze"], "parameters": {}, "priority": "medium"},
    {"id": 3, "description": "save", "agent": "WriterAgent", "tools": ["file_write"], "parameters": {"filename": "gnn.md", "content": "notes"}, "priority": "low"}
  ],
  "execution_mode": "sequential"
}`

func TestPlanSuccess(t *testing.T) {
	model := &fakeLLM{replies: []string{"```json\n" + validPlan + "\n```"}}
	o, _, _, _ := newOrchestrator(t, model)

	pr := o.Plan(context.Background(), "graph neural networks")
	require.True(t, pr.Success, pr.Error)
	assert.Nil(t, pr.Fallback)
	assert.Len(t, pr.Plan.Tasks, 3)
	assert.Equal(t, pr.Plan, pr.Effective())

	require.Len(t, model.reqs, 1)
	assert.Same(t, planSchema, model.reqs[0].Schema)
	assert.Contains(t, model.reqs[0].Prompt, "User Query: graph neural networks")
	assert.Contains(t, model.reqs[0].Prompt, "Context: {}")

	hist := o.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "graph neural networks", hist[0].Query)

	st, err := o.State(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.CurrentTask)
	assert.Equal(t, "survey graph neural networks", st.CurrentTask.Objective)
	assert.Equal(t, 1, st.TasksCompleted)
}

func TestPlanFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeLLM
		check func(t *testing.T, err error)
	}{
		{"provider error", &fakeLLM{err: errors.New("quota")}, func(t *testing.T, err error) {
			assert.ErrorContains(t, err, "quota")
		}},
		{"empty reply", &fakeLLM{replies: []string{"   "}}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, llm.ErrEmptyResponse)
		}},
		{"prose around json", &fakeLLM{replies: []string{"Here is the plan: " + validPlan}}, func(t *testing.T, err error) {
			var pe *llm.ParseError
			assert.ErrorAs(t, err, &pe)
		}},
		{"no tasks", &fakeLLM{replies: []string{`{"objective":"x","tasks":[],"execution_mode":"sequential"}`}}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidPlan)
		}},
		{"unknown tool", &fakeLLM{replies: []string{`{"objective":"x","tasks":[{"id":1,"agent":"SearchAgent","tools":["browse"]}]}`}}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidPlan)
		}},
		{"duplicate ids", &fakeLLM{replies: []string{`{"objective":"x","tasks":[{"id":1,"agent":"A","tools":["search"]},{"id":1,"agent":"A","tools":["search"]}]}`}}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidPlan)
		}},
		{"bad mode", &fakeLLM{replies: []string{`{"objective":"x","tasks":[{"id":1,"agent":"A","tools":["search"]}],"execution_mode":"swarm"}`}}, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrInvalidPlan)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, _, obs := newOrchestrator(t, tt.model)
			pr := o.Plan(context.Background(), "quantum computing")

			assert.False(t, pr.Success)
			require.Error(t, pr.Err)
			assert.Equal(t, pr.Err.Error(), pr.Error)
			tt.check(t, pr.Err)

			require.NotNil(t, pr.Fallback)
			assert.Len(t, pr.Fallback.Tasks, 2)
			assert.Equal(t, *pr.Fallback, pr.Effective())
			assert.Empty(t, o.History())
			assert.Len(t, obs.errs, 1)
		})
	}
}

func TestPlanWithoutLLM(t *testing.T) {
	o, _, _, _ := newOrchestrator(t, nil)
	o.LLM = nil
	pr := o.Plan(context.Background(), "q")
	assert.False(t, pr.Success)
	assert.NotNil(t, pr.Fallback)
}

func TestPlanDefaultsExecutionMode(t *testing.T) {
	model := &fakeLLM{replies: []string{`{"objective":"x","tasks":[{"id":1,"agent":"SearchAgent","tools":["search"]}]}`}}
	o, _, _, _ := newOrchestrator(t, model)
	pr := o.Plan(context.Background(), "q")
	require.True(t, pr.Success, pr.Error)
	assert.Equal(t, types.ModeSequential, pr.Plan.ExecutionMode)
}

func TestFallbackPlan(t *testing.T) {
	p := FallbackPlan("protein folding")
	assert.Equal(t, "protein folding", p.Objective)
	assert.Equal(t, types.ModeSequential, p.ExecutionMode)
	require.Len(t, p.Tasks, 2)

	assert.Equal(t, 1, p.Tasks[0].ID)
	assert.Equal(t, types.AgentSearch, p.Tasks[0].Agent)
	assert.Equal(t, []string{tools.Search}, p.Tasks[0].Tools)
	assert.Equal(t, map[string]any{"query": "protein folding", "max_results": 10}, p.Tasks[0].Parameters)
	assert.Equal(t, types.PriorityHigh, p.Tasks[0].Priority)

	assert.Equal(t, 2, p.Tasks[1].ID)
	assert.Equal(t, types.AgentAnalysis, p.Tasks[1].Agent)
	assert.Equal(t, []string{tools.Analyze}, p.Tasks[1].Tools)
	assert.Empty(t, p.Tasks[1].Parameters)
	assert.Equal(t, types.PriorityMedium, p.Tasks[1].Priority)
}

func TestExecute(t *testing.T) {
	o, s, a, obs := newOrchestrator(t, nil)
	var plan types.Plan
	require.NoError(t, llm.DecodeJSON(validPlan, &plan))

	res := o.Execute(context.Background(), plan)
	assert.Equal(t, "survey graph neural networks", res.Objective)
	assert.Equal(t, []int{1, 2, 3}, res.TasksCompleted)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"graph neural networks"}, s.queries)
	assert.Equal(t, 1, a.runs)

	out := res.Outputs[2]
	assert.Equal(t, types.AgentAnalysis, out.Agent)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Success)

	ctxMap := o.Context()
	assert.Contains(t, ctxMap, "task_1")
	assert.Contains(t, ctxMap, "task_2")
	assert.Contains(t, ctxMap, "task_3")

	assert.Equal(t, []string{types.AgentSearch, types.AgentAnalysis, types.AgentWriter}, obs.agents)

	st, err := o.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{types.AgentAnalysis, types.AgentSearch, types.AgentWriter}, st.ActiveAgents)
	assert.Equal(t, 3, st.ToolExecutions)
	assert.Positive(t, st.ContextTokens)
}

func TestExecuteCollectsToolErrors(t *testing.T) {
	o, _, _, obs := newOrchestrator(t, nil)
	plan := types.Plan{
		Objective: "x",
		Tasks: []types.Task{
			{ID: 7, Agent: types.AgentAnalysis, Tools: []string{tools.Analyze}},
			{ID: 8, Agent: types.AgentSearch, Tools: []string{tools.Search}, Parameters: map[string]any{"query": "q"}},
		},
		ExecutionMode: types.ModeParallel,
	}
	res := o.Execute(context.Background(), plan)
	assert.Equal(t, []int{7, 8}, res.TasksCompleted)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "task 7: analyze: no papers to analyze", res.Errors[0])
	assert.Len(t, obs.errs, 1)
}

func TestExecuteStopsOnCancel(t *testing.T) {
	o, s, _, _ := newOrchestrator(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := o.Execute(ctx, FallbackPlan("q"))
	assert.Empty(t, res.TasksCompleted)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "execution stopped before task 1")
	assert.Empty(t, s.queries)
}

func TestResearchFallsBack(t *testing.T) {
	o, s, a, _ := newOrchestrator(t, &fakeLLM{err: errors.New("offline")})
	pr, res := o.Research(context.Background(), "dark matter")
	assert.False(t, pr.Success)
	assert.Equal(t, []int{1, 2}, res.TasksCompleted)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"dark matter"}, s.queries)
	assert.Equal(t, 1, a.runs)
}

func TestPlanIncludesSessionContext(t *testing.T) {
	model := &fakeLLM{replies: []string{validPlan}}
	o, _, _, _ := newOrchestrator(t, model)
	o.Execute(context.Background(), FallbackPlan("first query"))

	o.Plan(context.Background(), "second")
	require.Len(t, model.reqs, 1)
	assert.Contains(t, model.reqs[0].Prompt, `"task_1"`)
}

func TestCompressContext(t *testing.T) {
	model := &fakeLLM{replies: []string{"  Summary of findings.  "}}
	o, _, _, _ := newOrchestrator(t, model)
	ctx := context.Background()

	assert.Equal(t, "", o.CompressContext(ctx, 100))
	assert.Empty(t, model.reqs)

	o.Execute(ctx, FallbackPlan("q"))
	assert.Equal(t, "Summary of findings.", o.CompressContext(ctx, 100))
	require.Len(t, model.reqs, 1)
	assert.Contains(t, model.reqs[0].Prompt, "under 100 tokens")
	assert.Equal(t, 100, model.reqs[0].MaxTokens)
}

func TestCompressContextFallback(t *testing.T) {
	o, _, _, _ := newOrchestrator(t, &fakeLLM{err: errors.New("down")})
	ctx := context.Background()
	o.Execute(ctx, FallbackPlan("q"))

	got := o.CompressContext(ctx, 5)
	assert.Len(t, []rune(got), 20)
	assert.True(t, strings.HasPrefix(got, `{"task_1"`))
}

func TestRememberRecall(t *testing.T) {
	o, _, _, _ := newOrchestrator(t, nil)
	ctx := context.Background()

	require.NoError(t, o.Remember(ctx, "favorite_topic", "graph learning", ""))
	v, ok, err := o.Recall(ctx, "favorite_topic")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "graph learning", v)

	e, _, err := o.Memory.Retrieve(ctx, "favorite_topic")
	require.NoError(t, err)
	assert.Equal(t, types.PriorityMedium, e.Importance)

	_, ok, err = o.Recall(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResetKeepsMemory(t *testing.T) {
	o, _, _, _ := newOrchestrator(t, &fakeLLM{replies: []string{validPlan}})
	ctx := context.Background()
	require.NoError(t, o.Remember(ctx, "k", "v", "high"))
	pr := o.Plan(ctx, "q")
	o.Execute(ctx, pr.Effective())

	o.Reset()
	st, err := o.State(ctx)
	require.NoError(t, err)
	assert.Nil(t, st.CurrentTask)
	assert.Empty(t, st.ActiveAgents)
	assert.Zero(t, st.TasksCompleted)
	assert.Zero(t, st.ToolExecutions)
	assert.Zero(t, st.ContextTokens)
	assert.Equal(t, 1, st.MemoryItems)
}

func TestCountTokensOverride(t *testing.T) {
	o, _, _, _ := newOrchestrator(t, nil)
	o.CountTokens = func(string) int { return 42 }
	o.Execute(context.Background(), FallbackPlan("q"))
	st, err := o.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, st.ContextTokens)
}

func TestTiktokenCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("may download the encoding")
	}
	count, err := TiktokenCounter("cl100k_base")
	if err != nil {
		t.Skipf("encoding unavailable: %v", err)
	}
	assert.Equal(t, 2, count("hello world"))
}

func TestLazyTiktokenCounterLoadsOnFirstUse(t *testing.T) {
	loads := 0
	old := loadCounter
	loadCounter = func(string) (func(string) int, error) {
		loads++
		return func(string) int { return 7 }, nil
	}
	t.Cleanup(func() { loadCounter = old })

	count := LazyTiktokenCounter("cl100k_base", zaptest.NewLogger(t))
	assert.Equal(t, 0, loads, "nothing loads until a count is needed")
	assert.Equal(t, 7, count("hello"))
	assert.Equal(t, 7, count("world"))
	assert.Equal(t, 1, loads)
}

func TestLazyTiktokenCounterFallsBackToEstimate(t *testing.T) {
	old := loadCounter
	loadCounter = func(string) (func(string) int, error) { return nil, errors.New("offline") }
	t.Cleanup(func() { loadCounter = old })

	count := LazyTiktokenCounter("cl100k_base", nil)
	assert.Equal(t, 3, count("twelve chars"))
	assert.Equal(t, 0, count(""))
}
