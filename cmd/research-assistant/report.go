// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/observability"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the performance report for the last command",
	Long: `Every command that talks to a source, the language model, or memory
exports its counters, latency samples, and trace log to
observability.export_path when it exits. Report renders that snapshot as
markdown, or prints it as JSON with --json.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().String("file", "", "snapshot to read (default observability.export_path)")
	reportCmd.Flags().Bool("json", false, "print the raw snapshot as JSON")
	reportCmd.Flags().Int("traces", 0, "also list the most recent N traces")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		path = cfg.Observability.ExportPath
	}
	jsonOutput, _ := cmd.Flags().GetBool("json")
	traces, _ := cmd.Flags().GetInt("traces")

	export, err := observability.ReadExport(path)
	if err != nil {
		return fmt.Errorf("no metrics snapshot (run a command first): %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(export)
	}
	fmt.Fprint(os.Stdout, observability.RenderReport(export.Metrics))
	if traces > 0 {
		writeTraces(export.Traces, traces, os.Stdout)
	}
	return nil
}

func writeTraces(traces []observability.Trace, n int, w io.Writer) {
	if len(traces) > n {
		traces = traces[len(traces)-n:]
	}
	fmt.Fprintf(w, "\n## Recent traces\n\n")
	for _, t := range traces {
		status := ""
		switch {
		case t.Error != "":
			status = " error: " + t.Error
		case t.Success != nil && !*t.Success:
			status = " failed"
		}
		fmt.Fprintf(w, "- %s %s %s %s%s\n",
			t.Timestamp.Local().Format("15:04:05"), t.Kind, t.Name, t.Action, status)
	}
}
