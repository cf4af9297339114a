// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"strings"
	"unicode"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Deduplicate merges papers that share an identifier or a normalized title.
// The first occurrence keeps its position; later duplicates fill its empty
// fields. It returns the merged list and the number of papers removed.
// The aggregator never calls this itself; callers opt in.
func Deduplicate(papers []types.Paper) ([]types.Paper, int) {
	seen := make(map[string]int) // key → index in merged
	var merged []types.Paper
	removed := 0

	for _, p := range papers {
		idKey := ""
		if p.Identifier != "" {
			idKey = "id:" + strings.ToLower(p.Identifier)
		}
		titleKey := ""
		if t := normalizeTitle(p.Title); t != "" {
			titleKey = "title:" + t
		}

		if idx, ok := lookup(seen, idKey, titleKey); ok {
			mergeInto(&merged[idx], p)
			register(seen, idx, idKey, titleKey)
			removed++
			continue
		}

		idx := len(merged)
		merged = append(merged, p)
		register(seen, idx, idKey, titleKey)
	}
	return merged, removed
}

// register points every non-empty key at idx unless another paper owns it.
// A duplicate's own keys are added too, so a later copy matching only
// through them still merges.
func register(seen map[string]int, idx int, keys ...string) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, taken := seen[k]; !taken {
			seen[k] = idx
		}
	}
}

func lookup(seen map[string]int, keys ...string) (int, bool) {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if idx, ok := seen[k]; ok {
			return idx, true
		}
	}
	return 0, false
}

// mergeInto fills empty fields of dst from src and keeps the larger
// citation count.
func mergeInto(dst *types.Paper, src types.Paper) {
	if dst.Identifier == "" {
		dst.Identifier = src.Identifier
	}
	if len(dst.Authors) == 0 {
		dst.Authors = src.Authors
	}
	if dst.Summary == "" {
		dst.Summary = src.Summary
	}
	if dst.Snippet == "" {
		dst.Snippet = src.Snippet
	}
	if dst.Year == 0 {
		dst.Year = src.Year
	}
	if dst.Published.IsZero() {
		dst.Published = src.Published
	}
	if src.Citations != nil && (dst.Citations == nil || *src.Citations > *dst.Citations) {
		dst.Citations = types.IntPtr(*src.Citations)
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.PDFURL == "" {
		dst.PDFURL = src.PDFURL
	}
	if src.Source != "" && !strings.Contains(dst.Source, src.Source) {
		dst.Source = dst.Source + "," + src.Source
	}
}

// normalizeTitle lowercases the title and strips punctuation.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
