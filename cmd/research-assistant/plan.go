// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/orchestrator"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var planCmd = &cobra.Command{
	Use:   "plan <query>",
	Short: "Plan the tasks for a research query without running them",
	Long: `Plan asks the language model to break the query into tasks for the
search, analysis, memory, and writer agents. If planning fails the reason
is printed and the two-task fallback plan (search, then analyze) is shown
instead.

Save the plan with --output and execute it later with run --plan.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().String("format", "yaml", "output format: yaml or json")
	planCmd.Flags().StringP("output", "o", "", "save the plan to a YAML file")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	query := strings.Join(args, " ")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}

	pr := a.orch.Plan(ctx, query)
	if !pr.Success {
		fmt.Fprintf(os.Stderr, "Planning failed (%s); using fallback plan\n", pr.Error)
	}
	plan := pr.Effective()

	if output != "" {
		if err := writePlanFile(output, plan); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved plan to %s\n", output)
	}
	if format == "json" {
		return writeStructured(pr, "json", os.Stdout)
	}
	return writePlan(plan, os.Stdout)
}

func writePlan(p types.Plan, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return enc.Close()
}

func writePlanFile(path string, p types.Plan) error {
	data, err := yaml.Marshal(&p)
	if err != nil {
		return fmt.Errorf("marshaling plan: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// readPlanFile loads a saved plan and applies the same checks as a
// freshly planned one.
func readPlanFile(path string) (types.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Plan{}, fmt.Errorf("reading plan: %w", err)
	}
	var p types.Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return types.Plan{}, fmt.Errorf("parsing plan: %w", err)
	}
	if err := orchestrator.ValidatePlan(&p); err != nil {
		return types.Plan{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
