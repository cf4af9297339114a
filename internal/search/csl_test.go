// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/research-assistant/pkg/types"
)

func TestToCSLItemArticle(t *testing.T) {
	p := types.Paper{
		Identifier: "10.1109/cvpr.2016.90",
		Title:      "Deep Residual Learning",
		Authors:    []string{"Kaiming He", "Plato"},
		Summary:    "Deeper networks.",
		Published:  time.Date(2016, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	item := toCSLItem(p)
	if item.Type != "article" {
		t.Errorf("Type = %q", item.Type)
	}
	if item.DOI != "10.1109/cvpr.2016.90" {
		t.Errorf("DOI = %q", item.DOI)
	}
	if item.Author[0].Family != "He" || item.Author[0].Given != "Kaiming" {
		t.Errorf("Author[0] = %+v", item.Author[0])
	}
	if item.Author[1].Literal != "Plato" {
		t.Errorf("Author[1] = %+v", item.Author[1])
	}
	if got := item.Issued.DateParts[0]; len(got) != 3 || got[0] != 2016 || got[1] != 6 {
		t.Errorf("Issued = %v", got)
	}
}

func TestToCSLItemWebYearOnly(t *testing.T) {
	item := toCSLItem(types.Paper{Title: "Blog", Year: 2022, SearchSource: types.SourceWeb})
	if item.Type != "webpage" {
		t.Errorf("Type = %q, want webpage", item.Type)
	}
	if got := item.Issued.DateParts[0]; len(got) != 1 || got[0] != 2022 {
		t.Errorf("Issued = %v", got)
	}
}

func TestFormatCSL(t *testing.T) {
	out := Outcome{Papers: []types.Paper{{Identifier: "1706.03762", Title: "Attention"}}}
	var buf bytes.Buffer
	if err := FormatCSL(out, &buf); err != nil {
		t.Fatalf("FormatCSL: %v", err)
	}
	if !strings.Contains(buf.String(), "id: \"1706.03762\"") && !strings.Contains(buf.String(), "id: 1706.03762") {
		t.Errorf("CSL output missing id:\n%s", buf.String())
	}
}

func TestFormatTable(t *testing.T) {
	out := Outcome{
		Papers: []types.Paper{
			{Title: strings.Repeat("x", 80), Authors: []string{"A. Author", "B"}, Year: 2020, Citations: types.IntPtr(12), SearchSource: "arxiv"},
		},
		TotalFound:      1,
		SourcesSearched: []string{"arxiv"},
		Errors:          []SourceError{{Source: "web", Error: "boom"}},
	}
	var buf bytes.Buffer
	FormatTable(out, &buf)
	s := buf.String()
	for _, want := range []string{"...", "et al.", "2020", "12", "1 results from arxiv", "warning: source web failed: boom"} {
		if !strings.Contains(s, want) {
			t.Errorf("table missing %q:\n%s", want, s)
		}
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	title := strings.Repeat("é", 80)
	got := truncate(title, 60)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if want := strings.Repeat("é", 57) + "..."; got != want {
		t.Errorf("truncate = %q, want %q", got, want)
	}
	if got := truncate("Ünïcödé", 7); got != "Ünïcödé" {
		t.Errorf("short title changed: %q", got)
	}
}

func TestFormatTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	FormatTable(Outcome{}, &buf)
	if !strings.Contains(buf.String(), "No results found.") {
		t.Errorf("got %q", buf.String())
	}
}

func TestFormatBibTeX(t *testing.T) {
	out := Outcome{Papers: []types.Paper{
		{Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}, Year: 2017},
		{Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}, Year: 2017, Identifier: "10.1/abc"},
		{Title: "On anonymous work"},
	}}
	var buf bytes.Buffer
	if err := FormatBibTeX(out, &buf); err != nil {
		t.Fatalf("FormatBibTeX: %v", err)
	}
	s := buf.String()
	for _, want := range []string{
		"@article{vaswani2017attention,",
		"@article{vaswani2017attentiona,",
		"doi = {10.1/abc}",
		"@article{anonanonymous,",
		"author = {Ashish Vaswani}",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("BibTeX missing %q:\n%s", want, s)
		}
	}
}

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries", "q.yaml")
	out := Outcome{
		Query:           "diffusion",
		SourcesSearched: []string{"arxiv"},
		Papers:          []types.Paper{{Title: "A", Year: 2023, Citations: types.IntPtr(5)}},
		TotalFound:      1,
	}
	if err := WriteQueryFile(path, QueryConfig{MaxResults: 10}, 0, out); err != nil {
		t.Fatalf("WriteQueryFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	qf, err := ReadQueryFile(path)
	if err != nil {
		t.Fatalf("ReadQueryFile: %v", err)
	}
	if qf.Query != "diffusion" || qf.Summary.Total != 1 {
		t.Errorf("QueryFile = %+v", qf)
	}
	if len(qf.Outcome.Papers) != 1 || qf.Outcome.Papers[0].CitationCount() != 5 {
		t.Errorf("Papers = %+v", qf.Outcome.Papers)
	}
}

func TestReadQueryFileMissing(t *testing.T) {
	if _, err := ReadQueryFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
