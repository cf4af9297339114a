// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// TaskOutput is what one task produced.
type TaskOutput struct {
	Agent     string         `json:"agent"`
	ToolsUsed []string       `json:"tools_used"`
	Results   []tools.Result `json:"results"`
	Timestamp time.Time      `json:"timestamp"`
}

// ExecutionResult is the outcome of Execute. Tool failures are listed in
// Errors; they do not stop later tasks.
type ExecutionResult struct {
	Objective      string             `json:"objective"`
	TasksCompleted []int              `json:"tasks_completed"`
	Outputs        map[int]TaskOutput `json:"outputs"`
	Errors         []string           `json:"errors"`
}

// Execute runs the plan's tasks in order. Parallel plans are accepted and
// also run in order. Each task's output is stored in the session context
// under task_<id>. Cancelling ctx stops before the next task.
func (o *Orchestrator) Execute(ctx context.Context, plan types.Plan) ExecutionResult {
	ctx, span := otel.Tracer("research-assistant/orchestrator").Start(ctx, "orchestrator.execute")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tasks", len(plan.Tasks)),
		attribute.String("mode", plan.ExecutionMode),
	)

	res := ExecutionResult{
		Objective: plan.Objective,
		Outputs:   make(map[int]TaskOutput, len(plan.Tasks)),
	}
	if o.Tools == nil {
		res.Errors = append(res.Errors, "tool registry is not configured")
		return res
	}
	if plan.ExecutionMode == types.ModeParallel {
		o.logger().Debug("parallel plan executed sequentially", zap.Int("tasks", len(plan.Tasks)))
	}

	for _, task := range plan.Tasks {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("execution stopped before task %d: %v", task.ID, err))
			break
		}

		out := o.executeTask(ctx, task)
		for i, r := range out.Results {
			if !r.Success {
				res.Errors = append(res.Errors, fmt.Sprintf("task %d: %s: %s", task.ID, out.ToolsUsed[i], r.Error))
			}
		}
		res.TasksCompleted = append(res.TasksCompleted, task.ID)
		res.Outputs[task.ID] = out
		o.setContext("task_"+strconv.Itoa(task.ID), out)
	}

	if len(res.Errors) > 0 {
		o.observeError(ctx, errors.New(res.Errors[0]))
	}
	return res
}

func (o *Orchestrator) executeTask(ctx context.Context, task types.Task) TaskOutput {
	o.mu.Lock()
	o.agents = append(o.agents, task.Agent)
	o.mu.Unlock()
	o.observeAgent(ctx, task.Agent, task.Description, task.Parameters)

	o.logger().Info("executing task",
		zap.Int("id", task.ID),
		zap.String("agent", task.Agent),
		zap.Strings("tools", task.Tools),
	)

	out := TaskOutput{Agent: task.Agent, ToolsUsed: task.Tools}
	for _, name := range task.Tools {
		out.Results = append(out.Results, o.Tools.Execute(ctx, name, task.Parameters))
	}
	out.Timestamp = time.Now()
	return out
}

// Research plans query, falling back when planning fails, and executes
// the resulting plan.
func (o *Orchestrator) Research(ctx context.Context, query string) (PlanResult, ExecutionResult) {
	pr := o.Plan(ctx, query)
	return pr, o.Execute(ctx, pr.Effective())
}
