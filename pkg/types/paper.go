// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research assistant:
// the paper record returned by every connector, task plans produced by the
// orchestrator, memory bank entries, conversation messages, and the
// configuration tree loaded by the CLI.
package types

import "time"

// Source labels set by the built-in connectors.
const (
	SourceArxiv           = "arxiv"
	SourceWeb             = "web"
	SourceScholar         = "scholar"
	SourceSemanticScholar = "semantic_scholar"
	SourceOpenAlex        = "openalex"
)

// Paper is the uniform record every connector normalizes its results into.
// Apart from Title, every field is optional; connectors fill what their API
// returns and consumers must tolerate zero values.
type Paper struct {
	// Identifier is the canonical ID from the source (arXiv ID, DOI, or URL).
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`

	// Title is the paper or page title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Summary is the abstract, when the source provides one.
	Summary string `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Snippet is the search-engine excerpt for web results.
	Snippet string `json:"snippet,omitempty" yaml:"snippet,omitempty"`

	// Year is the publication year, or 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Published is the publication or preprint date, when known.
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`

	// Citations is the citation count. Nil means the source does not report one.
	Citations *int `json:"citations,omitempty" yaml:"citations,omitempty"`

	// Source is the label the connector assigns (e.g. "arXiv", "web").
	Source string `json:"source" yaml:"source"`

	// SearchSource is the aggregator source name that produced the record.
	SearchSource string `json:"search_source,omitempty" yaml:"search_source,omitempty"`

	// URL is the landing page or link returned by the source.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// PDFURL links directly to a PDF when one is known.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Categories holds subject categories (arXiv only).
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// Text returns the summary, or the snippet when there is no summary.
func (p Paper) Text() string {
	if p.Summary != "" {
		return p.Summary
	}
	return p.Snippet
}

// CitationCount returns the citation count, treating an unknown count as zero.
func (p Paper) CitationCount() int {
	if p.Citations == nil {
		return 0
	}
	return *p.Citations
}

// IntPtr returns a pointer to n. Connectors use it to set Citations.
func IntPtr(n int) *int {
	return &n
}
