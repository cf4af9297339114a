// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Agent names recognised by the orchestrator.
const (
	AgentSearch   = "SearchAgent"
	AgentAnalysis = "AnalysisAgent"
	AgentMemory   = "MemoryAgent"
	AgentWriter   = "WriterAgent"
)

// Execution modes a plan may request.
const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// Task priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Task is one step of a research plan.
type Task struct {
	ID          int            `json:"id" yaml:"id"`
	Description string         `json:"description" yaml:"description"`
	Agent       string         `json:"agent" yaml:"agent"`
	Tools       []string       `json:"tools" yaml:"tools"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
	Priority    string         `json:"priority" yaml:"priority"`
}

// Plan is the structured output of the planning step.
type Plan struct {
	Objective     string `json:"objective" yaml:"objective"`
	Tasks         []Task `json:"tasks" yaml:"tasks"`
	ExecutionMode string `json:"execution_mode" yaml:"execution_mode"`
}
