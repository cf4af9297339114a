// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/search"
	"github.com/pdiddy/research-assistant/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search academic and web sources for papers",
	Long: `Search sends the query to every selected source concurrently and merges
the results. A failing source is reported as a warning and never removes
results from the others.

Sources: arxiv, semantic_scholar, openalex, and (with a Serper key) web and
scholar. Use --year-min/--year-max to filter by publication year, --related
to search for papers similar to a title, or --arxiv-id / --category to query
arXiv directly. Save the results with --output and analyze them later.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("query", "", "free-text research question (or pass it as arguments)")
	searchCmd.Flags().StringSlice("sources", nil, "sources to query (default from config)")
	searchCmd.Flags().Int("max-results", 0, "maximum results per source (default from config)")
	searchCmd.Flags().Int("year-min", 0, "keep papers published in or after this year")
	searchCmd.Flags().Int("year-max", 0, "keep papers published in or before this year")
	searchCmd.Flags().Bool("related", false, "treat the query as a paper title and find related work")
	searchCmd.Flags().String("arxiv-id", "", "fetch a single arXiv paper by ID")
	searchCmd.Flags().String("category", "", "list recent arXiv papers in a category (e.g. cs.AI)")
	searchCmd.Flags().Bool("dedup", false, "merge papers that share an identifier or title")
	searchCmd.Flags().String("format", "table", "output format: table, json, bibtex, or csl")
	searchCmd.Flags().StringP("output", "o", "", "save results to a YAML query file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	query, _ := cmd.Flags().GetString("query")
	if query == "" {
		query = strings.Join(args, " ")
	}
	sources, _ := cmd.Flags().GetStringSlice("sources")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults <= 0 {
		maxResults = cfg.Search.MaxResults
	}
	yearMin, _ := cmd.Flags().GetInt("year-min")
	yearMax, _ := cmd.Flags().GetInt("year-max")
	related, _ := cmd.Flags().GetBool("related")
	arxivID, _ := cmd.Flags().GetString("arxiv-id")
	category, _ := cmd.Flags().GetString("category")
	dedup, _ := cmd.Flags().GetBool("dedup")
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	var out search.Outcome
	var err error
	if arxivID != "" || category != "" {
		out, err = searchArxiv(ctx, arxivID, category, maxResults)
	} else {
		out, err = searchAggregated(ctx, query, sources, maxResults, yearMin, yearMax, related)
	}
	if err != nil {
		return err
	}

	removed := 0
	if dedup {
		out.Papers, removed = search.Deduplicate(out.Papers)
		out.TotalFound = len(out.Papers)
	}

	if output != "" {
		qcfg := search.QueryConfig{MaxResults: maxResults, Dedup: dedup, YearMin: yearMin, YearMax: yearMax}
		if err := search.WriteQueryFile(output, qcfg, removed, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved %d results to %s\n", out.TotalFound, output)
	}
	return writeOutcome(out, format, os.Stdout)
}

func searchAggregated(ctx context.Context, query string, sources []string, maxResults, yearMin, yearMax int, related bool) (search.Outcome, error) {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return search.Outcome{}, err
	}
	if len(sources) == 0 {
		sources = cfg.Search.Sources
	}

	var out search.Outcome
	switch {
	case related:
		out, err = a.search.SearchRelated(ctx, query, maxResults)
	case yearMin > 0 || yearMax > 0:
		out, err = a.search.SearchByCriteria(ctx, search.Criteria{
			Keywords:   strings.Fields(query),
			YearMin:    yearMin,
			YearMax:    yearMax,
			Sources:    sources,
			MaxResults: maxResults,
		})
	default:
		out, err = a.search.Search(ctx, query, sources, maxResults)
	}
	if err != nil {
		return out, err
	}

	stats := a.search.Statistics()
	logger.Debug("search statistics",
		zap.Int("searches", stats.TotalSearches),
		zap.Int("results", stats.TotalResults))
	return out, nil
}

func searchArxiv(ctx context.Context, id, category string, maxResults int) (search.Outcome, error) {
	c := &search.ArxivConnector{
		Client:    &http.Client{Timeout: cfg.Search.Timeout},
		UserAgent: cfg.Search.UserAgent,
	}
	out := search.Outcome{SourcesSearched: []string{types.SourceArxiv}}
	if id != "" {
		p, err := c.ByID(ctx, id)
		if err != nil {
			return out, err
		}
		out.Query = id
		out.Papers = []types.Paper{p}
	} else {
		papers, err := c.ByCategory(ctx, category, maxResults)
		if err != nil {
			return out, err
		}
		out.Query = "cat:" + category
		out.Papers = papers
	}
	for i := range out.Papers {
		out.Papers[i].SearchSource = types.SourceArxiv
	}
	out.TotalFound = len(out.Papers)
	return out, nil
}

func writeOutcome(out search.Outcome, format string, w io.Writer) error {
	switch format {
	case "table", "":
		search.FormatTable(out, w)
		return nil
	case "json":
		return search.FormatJSON(out, w)
	case "bibtex":
		return search.FormatBibTeX(out, w)
	case "csl":
		return search.FormatCSL(out, w)
	default:
		return fmt.Errorf("unknown format %q: use table, json, bibtex, or csl", format)
	}
}
