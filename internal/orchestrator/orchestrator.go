// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package orchestrator turns a research query into a task plan, executes
// the plan through the tool registry, and keeps the session state that
// later plans and context compression draw on. Long-term facts go to the
// memory bank, which survives Reset.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const agentName = "Orchestrator"

var errNoLLM = errors.New("no language model configured")

// Observer is told about agent activity and failures.
type Observer interface {
	LogAgentCall(ctx context.Context, agent, action string, details map[string]any)
	LogError(ctx context.Context, component string, err error)
}

// PlanRecord is one successfully planned query.
type PlanRecord struct {
	Query     string     `json:"query"`
	Plan      types.Plan `json:"plan"`
	Timestamp time.Time  `json:"timestamp"`
}

// State is a snapshot of the session.
type State struct {
	CurrentTask    *types.Plan `json:"current_task"`
	ActiveAgents   []string    `json:"active_agents"`
	TasksCompleted int         `json:"tasks_completed"`
	MemoryItems    int         `json:"memory_items"`
	ToolExecutions int         `json:"tool_executions"`
	ContextTokens  int         `json:"context_tokens"`
}

// Orchestrator coordinates planning and execution. Tools and Memory are
// required for Execute and Remember/Recall respectively.
type Orchestrator struct {
	LLM      llm.Generator
	Tools    *tools.Registry
	Memory   memory.Bank
	Observer Observer
	Logger   *zap.Logger

	// CountTokens measures the session context. Nil estimates four
	// bytes per token.
	CountTokens func(string) int

	mu      sync.Mutex
	current *types.Plan
	history []PlanRecord
	agents  []string
	session map[string]any
}

// Remember stores value under key in the memory bank.
func (o *Orchestrator) Remember(ctx context.Context, key string, value any, importance string) error {
	if o.Memory == nil {
		return errors.New("memory bank is not configured")
	}
	if importance == "" {
		importance = types.PriorityMedium
	}
	return o.Memory.Store(ctx, key, types.MemoryEntry{
		Value:      value,
		Importance: importance,
		Timestamp:  time.Now(),
	})
}

// Recall returns the value stored under key.
func (o *Orchestrator) Recall(ctx context.Context, key string) (any, bool, error) {
	if o.Memory == nil {
		return nil, false, errors.New("memory bank is not configured")
	}
	e, ok, err := o.Memory.Retrieve(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	return e.Value, true, nil
}

// State summarizes the session. TasksCompleted counts planned queries.
func (o *Orchestrator) State(ctx context.Context) (State, error) {
	o.mu.Lock()
	s := State{
		CurrentTask:    o.current,
		ActiveAgents:   distinct(o.agents),
		TasksCompleted: len(o.history),
	}
	contextJSON := o.contextJSONLocked()
	o.mu.Unlock()

	s.ContextTokens = o.tokens(contextJSON)
	if o.Tools != nil {
		s.ToolExecutions = len(o.Tools.History())
	}
	if o.Memory != nil {
		n, err := o.Memory.Len(ctx)
		if err != nil {
			return s, err
		}
		s.MemoryItems = n
	}
	return s, nil
}

// History returns the successfully planned queries, oldest first.
func (o *Orchestrator) History() []PlanRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]PlanRecord(nil), o.history...)
}

// Context returns a copy of the session context.
func (o *Orchestrator) Context() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]any, len(o.session))
	for k, v := range o.session {
		out[k] = v
	}
	return out
}

// Reset clears the session state and tool history. The memory bank is
// kept.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.current = nil
	o.history = nil
	o.agents = nil
	o.session = nil
	o.mu.Unlock()

	if o.Tools != nil {
		o.Tools.Clear()
	}
}

func (o *Orchestrator) setContext(key string, value any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		o.session = make(map[string]any)
	}
	o.session[key] = value
}

// contextJSONLocked must be called with o.mu held. Empty context is "".
func (o *Orchestrator) contextJSONLocked() string {
	if len(o.session) == 0 {
		return ""
	}
	data, err := json.Marshal(o.session)
	if err != nil {
		return ""
	}
	return string(data)
}

func (o *Orchestrator) tokens(s string) int {
	if s == "" {
		return 0
	}
	if o.CountTokens != nil {
		return o.CountTokens(s)
	}
	return estimateTokens(s)
}

func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

func (o *Orchestrator) observeAgent(ctx context.Context, agent, action string, details map[string]any) {
	if o.Observer != nil {
		o.Observer.LogAgentCall(ctx, agent, action, details)
	}
}

func (o *Orchestrator) observeError(ctx context.Context, err error) {
	if o.Observer != nil {
		o.Observer.LogError(ctx, agentName, err)
	}
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
