// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrInvalidPlan is returned when the model's plan decodes but cannot be
// executed.
var ErrInvalidPlan = errors.New("invalid plan")

const fallbackMaxResults = 10

// PlanResult is the outcome of Plan. On failure Err says why and Fallback
// holds the two-task plan to run instead.
type PlanResult struct {
	Success  bool        `json:"success"`
	Plan     types.Plan  `json:"plan"`
	Err      error       `json:"-"`
	Error    string      `json:"error,omitempty"`
	Fallback *types.Plan `json:"fallback_plan,omitempty"`
}

// Effective returns the plan to execute: the model's plan on success,
// otherwise the fallback.
func (r PlanResult) Effective() types.Plan {
	if r.Success || r.Fallback == nil {
		return r.Plan
	}
	return *r.Fallback
}

var planPromptTmpl = template.Must(template.New("plan").Parse(`You are a research orchestrator. Analyze this query and create an execution plan.

User Query: {{.Query}}

Context: {{.Context}}

Agents: SearchAgent (tool: search), AnalysisAgent (tool: analyze), MemoryAgent (tools: memory_store, memory_retrieve), WriterAgent (tool: file_write).
Search tasks take "query" and optionally "max_results" and "sources". Analysis runs over the papers from the latest search.

Return a JSON object with "objective", "tasks" (each with id, description, agent, tools, parameters, priority) and "execution_mode".`))

var planSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"objective": {Type: llm.TypeString, Description: "Clear research goal"},
		"tasks": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"id":          {Type: llm.TypeInteger},
					"description": {Type: llm.TypeString},
					"agent": {
						Type: llm.TypeString,
						Enum: []string{types.AgentSearch, types.AgentAnalysis, types.AgentMemory, types.AgentWriter},
					},
					"tools": {
						Type:  llm.TypeArray,
						Items: &llm.Schema{Type: llm.TypeString, Enum: tools.Names()},
					},
					"parameters": {
						Type: llm.TypeObject,
						Properties: map[string]*llm.Schema{
							"query":       {Type: llm.TypeString},
							"max_results": {Type: llm.TypeInteger},
							"sources":     llm.StringArray("Search sources"),
							"key":         {Type: llm.TypeString},
							"value":       {Type: llm.TypeString},
							"filename":    {Type: llm.TypeString},
							"content":     {Type: llm.TypeString},
						},
					},
					"priority": {
						Type: llm.TypeString,
						Enum: []string{types.PriorityHigh, types.PriorityMedium, types.PriorityLow},
					},
				},
				Required: []string{"id", "description", "agent", "tools", "priority"},
			},
		},
		"execution_mode": {
			Type: llm.TypeString,
			Enum: []string{types.ModeSequential, types.ModeParallel},
		},
	},
	Required: []string{"objective", "tasks", "execution_mode"},
}

// Plan asks the model for a task plan. A successful plan becomes the
// current task and is appended to the plan history. Any failure yields
// Success false with the fallback plan attached.
func (o *Orchestrator) Plan(ctx context.Context, query string) PlanResult {
	ctx, span := otel.Tracer("research-assistant/orchestrator").Start(ctx, "orchestrator.plan")
	defer span.End()
	o.observeAgent(ctx, agentName, "plan", map[string]any{"query": query})

	plan, err := o.requestPlan(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning failed")
		o.logger().Warn("planning failed, using fallback plan", zap.Error(err))
		o.observeError(ctx, err)

		fb := FallbackPlan(query)
		return PlanResult{Err: err, Error: err.Error(), Fallback: &fb}
	}
	span.SetAttributes(attribute.Int("tasks", len(plan.Tasks)))

	o.mu.Lock()
	o.current = &plan
	o.history = append(o.history, PlanRecord{Query: query, Plan: plan, Timestamp: time.Now()})
	o.mu.Unlock()

	return PlanResult{Success: true, Plan: plan}
}

func (o *Orchestrator) requestPlan(ctx context.Context, query string) (types.Plan, error) {
	if o.LLM == nil {
		return types.Plan{}, errNoLLM
	}

	session := []byte("{}")
	var err error
	o.mu.Lock()
	if len(o.session) > 0 {
		session, err = json.MarshalIndent(o.session, "", "  ")
	}
	o.mu.Unlock()
	if err != nil {
		return types.Plan{}, fmt.Errorf("encoding session context: %w", err)
	}

	prompt, err := llm.Render(planPromptTmpl, struct{ Query, Context string }{query, string(session)})
	if err != nil {
		return types.Plan{}, err
	}
	reply, err := o.LLM.Generate(ctx, llm.Request{Prompt: prompt, Schema: planSchema})
	if err != nil {
		return types.Plan{}, fmt.Errorf("requesting plan: %w", err)
	}

	var plan types.Plan
	if err := llm.DecodeJSON(reply, &plan); err != nil {
		return types.Plan{}, err
	}
	if err := ValidatePlan(&plan); err != nil {
		return types.Plan{}, err
	}
	return plan, nil
}

// ValidatePlan defaults an empty execution mode to sequential and rejects
// plans the executor cannot run.
func ValidatePlan(p *types.Plan) error {
	if len(p.Tasks) == 0 {
		return fmt.Errorf("%w: no tasks", ErrInvalidPlan)
	}
	switch p.ExecutionMode {
	case "":
		p.ExecutionMode = types.ModeSequential
	case types.ModeSequential, types.ModeParallel:
	default:
		return fmt.Errorf("%w: unknown execution mode %q", ErrInvalidPlan, p.ExecutionMode)
	}

	known := tools.Names()
	seen := make(map[int]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate task id %d", ErrInvalidPlan, t.ID)
		}
		seen[t.ID] = true
		if t.Agent == "" {
			return fmt.Errorf("%w: task %d has no agent", ErrInvalidPlan, t.ID)
		}
		if len(t.Tools) == 0 {
			return fmt.Errorf("%w: task %d has no tools", ErrInvalidPlan, t.ID)
		}
		for _, name := range t.Tools {
			if !slices.Contains(known, name) {
				return fmt.Errorf("%w: task %d uses unknown tool %q", ErrInvalidPlan, t.ID, name)
			}
		}
	}
	return nil
}

// FallbackPlan is the plan used when planning fails: search for the query,
// then analyze what was found.
func FallbackPlan(query string) types.Plan {
	return types.Plan{
		Objective: query,
		Tasks: []types.Task{
			{
				ID:          1,
				Description: "Search for papers on: " + query,
				Agent:       types.AgentSearch,
				Tools:       []string{tools.Search},
				Parameters:  map[string]any{"query": query, "max_results": fallbackMaxResults},
				Priority:    types.PriorityHigh,
			},
			{
				ID:          2,
				Description: "Analyze found papers",
				Agent:       types.AgentAnalysis,
				Tools:       []string{tools.Analyze},
				Parameters:  map[string]any{},
				Priority:    types.PriorityMedium,
			},
		},
		ExecutionMode: types.ModeSequential,
	}
}
