// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/analysis"
	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [query]",
	Short: "Plan, execute, and report on a research query",
	Long: `Run plans the query (falling back to search-then-analyze when planning
fails), executes every task through the tool registry, and prints what each
task produced. Tool failures are listed at the end and never stop later
tasks.

A summary of the run is kept in long-term memory under research_<timestamp>.
Use --plan to execute a plan saved by plan --output instead of planning.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("plan", "", "execute a saved plan file instead of planning")
	runCmd.Flags().Bool("report", false, "print the performance report after the run")
	runCmd.Flags().String("save", "", "file name under the outputs directory for the analysis report")
	runCmd.Flags().Bool("no-memory", false, "do not store the run in long-term memory")
	runCmd.Flags().Int("summarize", 0, "print a summary of the run context in at most N tokens")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	query := strings.Join(args, " ")
	planFile, _ := cmd.Flags().GetString("plan")
	showReport, _ := cmd.Flags().GetBool("report")
	save, _ := cmd.Flags().GetString("save")
	noMemory, _ := cmd.Flags().GetBool("no-memory")
	summaryTokens, _ := cmd.Flags().GetInt("summarize")

	if query == "" && planFile == "" {
		return search.ErrEmptyQuery
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	var plan types.Plan
	if planFile != "" {
		if plan, err = readPlanFile(planFile); err != nil {
			return err
		}
		if query == "" {
			query = plan.Objective
		}
	} else {
		pr := a.orch.Plan(ctx, query)
		if !pr.Success {
			fmt.Fprintf(os.Stderr, "Planning failed (%s); using fallback plan\n", pr.Error)
		}
		plan = pr.Effective()
	}
	fmt.Fprintf(os.Stdout, "Plan: %s (%d tasks, %s)\n\n", plan.Objective, len(plan.Tasks), plan.ExecutionMode)

	res := a.orch.Execute(ctx, plan)
	writeExecution(res, os.Stdout)

	report, hasReport := lastReport(res)
	if save != "" && hasReport {
		var buf bytes.Buffer
		analysis.WriteMarkdown(report, &buf)
		if err := saveOutput(cmd, a, save, buf.String()); err != nil {
			return err
		}
	}

	if !noMemory {
		if err := rememberRun(ctx, a.orch, query, plan, res, report); err != nil {
			logger.Warn("storing run in memory", zap.Error(err))
		}
	}

	if state, err := a.orch.State(ctx); err == nil {
		logger.Info("run finished",
			zap.Strings("agents", state.ActiveAgents),
			zap.Int("tool_executions", state.ToolExecutions),
			zap.Int("memory_items", state.MemoryItems),
			zap.Int("context_tokens", state.ContextTokens))
	}
	if summaryTokens > 0 {
		fmt.Fprintf(os.Stdout, "\n## Context summary\n\n%s\n", a.orch.CompressContext(ctx, summaryTokens))
	}

	if showReport {
		fmt.Fprintln(os.Stdout)
		fmt.Fprint(os.Stdout, a.obs.Report())
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// writeExecution prints each task's tool results in task order, rendering
// search outcomes as tables and analysis reports as markdown.
func writeExecution(res orchestrator.ExecutionResult, w io.Writer) {
	ids := make([]int, 0, len(res.Outputs))
	for id := range res.Outputs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		out := res.Outputs[id]
		fmt.Fprintf(w, "== Task %d (%s) ==\n", id, out.Agent)
		for i, r := range out.Results {
			tool := out.ToolsUsed[i]
			if !r.Success {
				fmt.Fprintf(w, "%s failed: %s\n", tool, r.Error)
				continue
			}
			switch data := r.Data.(type) {
			case search.Outcome:
				search.FormatTable(data, w)
			case analysis.Report:
				analysis.WriteMarkdown(data, w)
			default:
				fmt.Fprintln(w, r.Message)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%d tasks completed", len(res.TasksCompleted))
	if len(res.Errors) > 0 {
		fmt.Fprintf(w, ", %d errors:\n", len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		return
	}
	fmt.Fprintln(w)
}

// lastReport returns the analysis report from the highest-numbered task
// that produced one.
func lastReport(res orchestrator.ExecutionResult) (analysis.Report, bool) {
	var (
		report analysis.Report
		bestID = -1
	)
	for id, out := range res.Outputs {
		for _, r := range out.Results {
			if rep, ok := r.Data.(analysis.Report); ok && r.Success && id > bestID {
				report, bestID = rep, id
			}
		}
	}
	return report, bestID >= 0
}

// runSummary is what a run leaves in long-term memory.
type runSummary struct {
	Query          string   `json:"query"`
	Objective      string   `json:"objective"`
	TasksCompleted int      `json:"tasks_completed"`
	PapersAnalyzed int      `json:"papers_analyzed,omitempty"`
	Synthesis      string   `json:"synthesis,omitempty"`
	Gaps           []string `json:"gaps,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	Timestamp      string   `json:"timestamp"`
}

func rememberRun(ctx context.Context, o *orchestrator.Orchestrator, query string, plan types.Plan, res orchestrator.ExecutionResult, report analysis.Report) error {
	now := time.Now()
	summary := runSummary{
		Query:          query,
		Objective:      plan.Objective,
		TasksCompleted: len(res.TasksCompleted),
		PapersAnalyzed: report.PapersAnalyzed,
		Synthesis:      report.Synthesis,
		Gaps:           report.Gaps,
		Errors:         res.Errors,
		Timestamp:      now.Format(time.RFC3339),
	}
	return o.Remember(ctx, "research_"+now.Format("20060102_150405"), summary, types.PriorityHigh)
}
