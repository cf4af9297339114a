// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/research-assistant/internal/httputil"
)

const sampleArxivSearchXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v1</id>
    <title>Attention Is All
      You Need</title>
    <summary>We propose a new architecture based solely on attention mechanisms.</summary>
    <published>2017-06-12T17:57:34Z</published>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v1" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v1" rel="related" type="application/pdf"/>
    <category term="cs.CL"/>
    <category term="cs.LG"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <title>BERT: Pre-training of Deep Bidirectional Transformers</title>
    <summary>We introduce BERT.</summary>
    <published>2018-10-11T00:00:00Z</published>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

const emptyArxivXML = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func arxivServer(t *testing.T, body string, captured *string) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = r.URL.RawQuery
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, body)
	}))
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() {
		arxivAPIBase = old
		ts.Close()
	})
}

func TestArxivConnectorSearch(t *testing.T) {
	var query string
	arxivServer(t, sampleArxivSearchXML, &query)

	c := &ArxivConnector{UserAgent: "test/0.1"}
	papers, err := c.Search(context.Background(), "attention mechanisms", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("len(papers) = %d, want 2", len(papers))
	}

	p := papers[0]
	if p.Identifier != "1706.03762" {
		t.Errorf("Identifier = %q, want %q", p.Identifier, "1706.03762")
	}
	if p.Title != "Attention Is All You Need" {
		t.Errorf("Title = %q", p.Title)
	}
	if len(p.Authors) != 2 {
		t.Errorf("len(Authors) = %d, want 2", len(p.Authors))
	}
	if p.Source != "arXiv" {
		t.Errorf("Source = %q, want %q", p.Source, "arXiv")
	}
	if p.Year != 2017 {
		t.Errorf("Year = %d, want 2017", p.Year)
	}
	if p.PDFURL != "http://arxiv.org/pdf/1706.03762v1" {
		t.Errorf("PDFURL = %q", p.PDFURL)
	}
	if strings.Join(p.Categories, ",") != "cs.CL,cs.LG" {
		t.Errorf("Categories = %v", p.Categories)
	}

	for _, want := range []string{"sortBy=relevance", "max_results=5", "search_query=all%3Aattention+mechanisms"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestArxivConnectorLogsRetries(t *testing.T) {
	oldDelay := httputil.RetryBaseDelay
	httputil.RetryBaseDelay = time.Millisecond
	t.Cleanup(func() { httputil.RetryBaseDelay = oldDelay })

	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, sampleArxivSearchXML)
	}))
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() {
		arxivAPIBase = old
		ts.Close()
	})

	core, logs := observer.New(zap.DebugLevel)
	c := &ArxivConnector{Logger: zap.New(core)}
	papers, err := c.Search(context.Background(), "attention", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("len(papers) = %d, want 2", len(papers))
	}
	if n := logs.FilterMessage("throttled, retrying").Len(); n != 1 {
		t.Errorf("retry log entries = %d, want 1", n)
	}
}

func TestArxivConnectorEmptyQuery(t *testing.T) {
	c := &ArxivConnector{}
	if _, err := c.Search(context.Background(), "  ", 5); err == nil {
		t.Error("expected error for empty query")
	}
}

func TestArxivConnectorHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	old := arxivAPIBase
	arxivAPIBase = ts.URL
	defer func() { arxivAPIBase = old }()

	c := &ArxivConnector{Client: ts.Client()}
	_, err := c.Search(context.Background(), "q", 5)
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("err = %v, want HTTP 500", err)
	}
}

func TestArxivConnectorByCategory(t *testing.T) {
	var query string
	arxivServer(t, sampleArxivSearchXML, &query)

	c := &ArxivConnector{}
	papers, err := c.ByCategory(context.Background(), "cs.AI", 3)
	if err != nil {
		t.Fatalf("ByCategory: %v", err)
	}
	if len(papers) != 2 {
		t.Errorf("len(papers) = %d, want 2", len(papers))
	}
	for _, want := range []string{"search_query=cat%3Acs.AI", "sortBy=submittedDate"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q missing %q", query, want)
		}
	}
}

func TestArxivConnectorByID(t *testing.T) {
	var query string
	arxivServer(t, sampleArxivSearchXML, &query)

	c := &ArxivConnector{}
	p, err := c.ByID(context.Background(), "1706.03762")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if p.Identifier != "1706.03762" {
		t.Errorf("Identifier = %q", p.Identifier)
	}
	if !strings.Contains(query, "id_list=1706.03762") {
		t.Errorf("query %q missing id_list", query)
	}
}

func TestArxivConnectorByIDNotFound(t *testing.T) {
	arxivServer(t, emptyArxivXML, nil)

	c := &ArxivConnector{}
	_, err := c.ByID(context.Background(), "0000.00000")
	if !errors.Is(err, ErrPaperNotFound) {
		t.Errorf("err = %v, want ErrPaperNotFound", err)
	}
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"http://arxiv.org/abs/1706.03762v5", "1706.03762"},
		{"http://arxiv.org/abs/2301.12345", "2301.12345"},
		{"https://arxiv.org/abs/2301.07041v2", "2301.07041"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := extractArxivID(tt.input); got != tt.want {
				t.Errorf("extractArxivID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
