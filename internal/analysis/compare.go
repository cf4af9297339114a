// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// AspectAnalysis is one paper's one-sentence view of an aspect.
type AspectAnalysis struct {
	Title    string `json:"title" yaml:"title"`
	Analysis string `json:"analysis" yaml:"analysis"`
}

// Comparison contrasts up to five papers on a single aspect such as
// "methodology" or "dataset".
type Comparison struct {
	Aspect string           `json:"aspect" yaml:"aspect"`
	Papers []AspectAnalysis `json:"papers" yaml:"papers"`
}

// Compare asks for a one-sentence description of aspect for each of the
// first five papers. A failed call yields "Analysis unavailable".
func (p *Pipeline) Compare(ctx context.Context, papers []types.Paper, aspect string) Comparison {
	c := Comparison{Aspect: aspect}
	for _, paper := range papers[:min(stagePapers, len(papers))] {
		a := AspectAnalysis{Title: titleOrUnknown(paper), Analysis: compareUnavailable}
		reply, err := p.generate(ctx, comparePromptTmpl, struct {
			Aspect, Title, Text string
		}{aspect, a.Title, truncateRunes(paper.Text(), compareTextLen)})
		if err == nil {
			a.Analysis = strings.TrimSpace(reply)
		}
		c.Papers = append(c.Papers, a)
	}
	return c
}

// LiteratureReview drafts a short structured review of papers on query.
func (p *Pipeline) LiteratureReview(ctx context.Context, papers []types.Paper, query string) string {
	reply, err := p.generate(ctx, reviewPromptTmpl, struct {
		Query  string
		Papers []types.Paper
	}{query, papers})
	if err != nil {
		return fmt.Sprintf("Literature review generation failed: %v", err)
	}
	return reply
}
