// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-assistant/internal/memory"
	"github.com/pdiddy/research-assistant/internal/tools"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Manage long-term memory (store, get, list)",
	Long: `Memory reads and writes the long-term memory bank that persists across
runs. The backend is chosen by memory.backend: json (default), sqlite, or
redis.`,
}

// --- store subcommand ---

var memoryStoreCmd = &cobra.Command{
	Use:   "store <key> <value>",
	Short: "Store a value under a key",
	Long: `Store saves value under key, replacing any previous entry. A value that
parses as JSON is stored as structured data; anything else is stored as a
string.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMemoryStore,
}

func runMemoryStore(cmd *cobra.Command, args []string) error {
	importance, _ := cmd.Flags().GetString("importance")
	note, _ := cmd.Flags().GetString("context")

	a, err := newApp(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	res := a.tools.Execute(commandContext(cmd), tools.MemoryStore, map[string]any{
		"key":        args[0],
		"value":      parseValue(strings.Join(args[1:], " ")),
		"importance": importance,
		"context":    note,
	})
	if !res.Success {
		return errors.New(res.Error)
	}
	fmt.Fprintln(os.Stdout, res.Message)
	return nil
}

// parseValue keeps JSON objects, arrays, and numbers structured.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// --- get subcommand ---

var memoryGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the entry stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryGet,
}

func runMemoryGet(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd), cfg)
	if err != nil {
		return err
	}
	res := a.tools.Execute(commandContext(cmd), tools.MemoryRetrieve, map[string]any{"key": args[0]})
	if !res.Success {
		return errors.New(res.Error)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Data)
}

// --- list subcommand ---

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	RunE:  runMemoryList,
}

type listedEntry struct {
	Key string `json:"key"`
	types.MemoryEntry
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	entries, err := listEntries(cmd, a.bank)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	formatEntries(entries, os.Stdout)
	return nil
}

func listEntries(cmd *cobra.Command, bank memory.Bank) ([]listedEntry, error) {
	ctx := commandContext(cmd)
	keys, err := bank.Keys(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]listedEntry, 0, len(keys))
	for _, k := range keys {
		e, ok, err := bank.Retrieve(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, listedEntry{Key: k, MemoryEntry: e})
		}
	}
	return entries, nil
}

func formatEntries(entries []listedEntry, w io.Writer) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Memory is empty.")
		return
	}

	fmt.Fprintf(w, "%-32s  %-10s  %-20s  %s\n", "Key", "Importance", "Stored", "Value")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, e := range entries {
		value, _ := json.Marshal(e.Value)
		v := string(value)
		if len(v) > 30 {
			v = v[:27] + "..."
		}
		key := e.Key
		if len(key) > 32 {
			key = key[:29] + "..."
		}
		fmt.Fprintf(w, "%-32s  %-10s  %-20s  %s\n",
			key, e.Importance, e.Timestamp.Local().Format(time.DateTime), v)
	}
	fmt.Fprintf(w, "\n%d entries\n", len(entries))
}

func init() {
	memoryStoreCmd.Flags().String("importance", types.PriorityMedium, "importance: high, medium, or low")
	memoryStoreCmd.Flags().String("context", "", "free-text note stored with the entry")
	memoryListCmd.Flags().Bool("json", false, "output entries as JSON")

	memoryCmd.AddCommand(memoryStoreCmd, memoryGetCmd, memoryListCmd)
	rootCmd.AddCommand(memoryCmd)
}
