// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analysis scores papers against a query and runs the four-stage
// analysis pipeline: relevance, findings, synthesis, and gaps.
package analysis

import (
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Score weights and thresholds.
const (
	titleWeight    = 0.4
	textBonus      = 0.3
	recentBonus    = 0.2 // year >= recentYear
	modernBonus    = 0.1 // year >= modernYear
	citedBonus     = 0.1 // citations > citedThreshold
	recentYear     = 2023
	modernYear     = 2020
	citedThreshold = 100
)

// Score rates how relevant p is to query on a 0 to 1 scale. Query terms are
// the lowercased whitespace-separated words of query.
//
//   - title: fraction of query terms that are also title words, times 0.4
//   - text: 0.3 if any query term occurs in the summary (or snippet)
//   - recency: 0.2 from 2023, 0.1 from 2020
//   - citations: 0.1 above 100
func Score(p types.Paper, query string) float64 {
	terms := termSet(query)
	score := 0.0

	if len(terms) > 0 {
		title := termSet(p.Title)
		overlap := 0
		for t := range terms {
			if title[t] {
				overlap++
			}
		}
		score += float64(overlap) / float64(len(terms)) * titleWeight
	}

	text := strings.ToLower(p.Text())
	for t := range terms {
		if strings.Contains(text, t) {
			score += textBonus
			break
		}
	}

	switch {
	case p.Year >= recentYear:
		score += recentBonus
	case p.Year >= modernYear:
		score += modernBonus
	}

	if p.CitationCount() > citedThreshold {
		score += citedBonus
	}

	return min(score, 1.0)
}

// ScoreAll scores every paper, preserving input order.
func ScoreAll(papers []types.Paper, query string) []float64 {
	scores := make([]float64, len(papers))
	for i, p := range papers {
		scores[i] = Score(p, query)
	}
	return scores
}

func termSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
