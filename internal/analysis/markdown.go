// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analysis

import (
	"fmt"
	"io"
	"strings"
)

const markdownAuthors = 3

// WriteMarkdown renders a report for reading in a terminal or saving with
// the file_write tool.
func WriteMarkdown(r Report, w io.Writer) {
	fmt.Fprintf(w, "# Analysis: %s\n\n", r.Query)
	fmt.Fprintf(w, "%d papers analyzed.\n", r.PapersAnalyzed)

	if len(r.TopPapers) > 0 {
		fmt.Fprintf(w, "\n## Top papers\n\n")
		for i, p := range r.TopPapers {
			fmt.Fprintf(w, "%d. **%s** (%s, %s) relevance %.2f\n",
				i+1, titleOrUnknown(p.Paper), authorsOrUnknown(p.Authors, markdownAuthors),
				yearOrUnknown(p.Year), p.Score)
			if p.URL != "" {
				fmt.Fprintf(w, "   %s\n", p.URL)
			}
		}
	}

	if r.Synthesis != "" {
		fmt.Fprintf(w, "\n## Synthesis\n\n%s\n", strings.TrimSpace(r.Synthesis))
	}

	if len(r.Findings) > 0 {
		fmt.Fprintf(w, "\n## Key findings\n\n")
		for _, f := range r.Findings {
			fmt.Fprintf(w, "- **%s**: %s\n", f.Paper, oneLine(f.Finding))
		}
	}

	if len(r.Gaps) > 0 {
		fmt.Fprintf(w, "\n## Research gaps\n\n")
		for _, g := range r.Gaps {
			fmt.Fprintf(w, "- %s\n", g)
		}
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
