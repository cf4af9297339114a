// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-assistant/internal/analysis"
	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/internal/tools"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <query-file>",
	Short: "Analyze the papers in a saved search",
	Long: `Analyze reads a query file written by search --output and runs the
analysis pipeline over its papers: relevance scoring, key findings from the
top papers, a synthesis, and research gaps. Language model failures leave
placeholder text in the affected section.

Use --compare to compare the top papers on one aspect, or --review for a
literature review. --save writes the markdown report to the outputs
directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("query", "", "override the query stored in the file")
	analyzeCmd.Flags().String("format", "markdown", "output format: markdown, json, or yaml")
	analyzeCmd.Flags().String("compare", "", "compare papers on this aspect (e.g. methodology)")
	analyzeCmd.Flags().Bool("review", false, "generate a literature review")
	analyzeCmd.Flags().String("save", "", "file name under the outputs directory for the markdown report")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	qf, err := search.ReadQueryFile(args[0])
	if err != nil {
		return err
	}
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = qf.Query
	}
	format, _ := cmd.Flags().GetString("format")
	aspect, _ := cmd.Flags().GetString("compare")
	review, _ := cmd.Flags().GetBool("review")
	save, _ := cmd.Flags().GetString("save")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	papers := qf.Outcome.Papers

	switch {
	case aspect != "":
		return writeStructured(a.pipeline.Compare(ctx, papers, aspect), format, os.Stdout)
	case review:
		text := a.pipeline.LiteratureReview(ctx, papers, query)
		fmt.Fprintln(os.Stdout, text)
		return saveOutput(cmd, a, save, text)
	}

	report, err := a.pipeline.Run(ctx, papers, query)
	if err != nil {
		return err
	}
	if err := writeReport(report, format, os.Stdout); err != nil {
		return err
	}
	if save == "" {
		return nil
	}
	var buf bytes.Buffer
	analysis.WriteMarkdown(report, &buf)
	return saveOutput(cmd, a, save, buf.String())
}

func writeReport(r analysis.Report, format string, w io.Writer) error {
	if format == "markdown" || format == "" {
		analysis.WriteMarkdown(r, w)
		return nil
	}
	return writeStructured(r, format, w)
}

func writeStructured(v any, format string, w io.Writer) error {
	switch format {
	case "json", "markdown", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown format %q: use markdown, json, or yaml", format)
	}
}

// saveOutput writes content through the file_write tool so the write is
// confined to the outputs directory and shows up in the metrics.
func saveOutput(cmd *cobra.Command, a *app, name, content string) error {
	if name == "" {
		return nil
	}
	res := a.tools.Execute(commandContext(cmd), tools.FileWrite, map[string]any{
		"filename": name,
		"content":  content,
	})
	if !res.Success {
		return fmt.Errorf("saving %s: %s", name, res.Error)
	}
	fmt.Fprintln(os.Stderr, res.Message)
	return nil
}
