// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// FormatTable writes papers as a human-readable table to w.
func FormatTable(out Outcome, w io.Writer) {
	if len(out.Papers) == 0 {
		fmt.Fprintln(w, "No results found.")
		writeSourceErrors(out, w)
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-9s  %s\n",
		"#", "Title", "Authors", "Year", "Citations", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 112))

	for i, p := range out.Papers {
		year := ""
		if p.Year > 0 {
			year = fmt.Sprintf("%d", p.Year)
		}
		cites := ""
		if p.Citations != nil {
			cites = fmt.Sprintf("%d", *p.Citations)
		}
		fmt.Fprintf(w, "%-4d  %-60s  %-20s  %-4s  %-9s  %s\n",
			i+1, truncate(p.Title, 60), formatAuthors(p.Authors), year, cites, p.SearchSource)
	}

	fmt.Fprintf(w, "\n%d results from %s\n", out.TotalFound, strings.Join(out.SourcesSearched, ", "))
	writeSourceErrors(out, w)
}

func writeSourceErrors(out Outcome, w io.Writer) {
	for _, e := range out.Errors {
		fmt.Fprintf(w, "warning: source %s failed: %s\n", e.Source, e.Error)
	}
}

// FormatJSON writes the outcome as indented JSON to w.
func FormatJSON(out Outcome, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FormatBibTeX writes one @article entry per paper. Citation keys are built
// from the first author's family name, the year, and the first title word,
// with a letter suffix when two papers collide.
func FormatBibTeX(out Outcome, w io.Writer) error {
	used := make(map[string]int)
	var b strings.Builder
	for _, p := range out.Papers {
		key := citationKey(p)
		if n := used[key]; n > 0 {
			used[key] = n + 1
			key = fmt.Sprintf("%s%c", key, 'a'+rune(n-1))
		} else {
			used[key] = 1
		}

		fmt.Fprintf(&b, "@article{%s,\n", key)
		fmt.Fprintf(&b, "  title = {%s},\n", p.Title)
		if len(p.Authors) > 0 {
			fmt.Fprintf(&b, "  author = {%s},\n", strings.Join(p.Authors, " and "))
		}
		if p.Year > 0 {
			fmt.Fprintf(&b, "  year = {%d},\n", p.Year)
		}
		if strings.HasPrefix(p.Identifier, "10.") {
			fmt.Fprintf(&b, "  doi = {%s},\n", p.Identifier)
		}
		if p.URL != "" {
			fmt.Fprintf(&b, "  url = {%s},\n", p.URL)
		}
		fmt.Fprintf(&b, "}\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func citationKey(p types.Paper) string {
	var b strings.Builder
	if len(p.Authors) > 0 {
		b.WriteString(keyPart(parseAuthorName(p.Authors[0]).familyOrLiteral()))
	} else {
		b.WriteString("anon")
	}
	if p.Year > 0 {
		fmt.Fprintf(&b, "%d", p.Year)
	}
	for _, word := range strings.Fields(p.Title) {
		if part := keyPart(word); len(part) > 3 {
			b.WriteString(part)
			break
		}
	}
	return b.String()
}

// keyPart lowercases s and keeps only ASCII letters and digits.
func keyPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

// truncate shortens s to max runes, marking the cut with "...".
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
