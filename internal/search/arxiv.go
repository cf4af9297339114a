// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// arxivAPIBase is the arXiv search endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ErrPaperNotFound is returned by ByID when arXiv has no matching entry.
var ErrPaperNotFound = errors.New("paper not found")

// Label stored in Paper.Source for arXiv results.
const arxivLabel = "arXiv"

// ArxivConnector queries the arXiv Atom API.
type ArxivConnector struct {
	Client    *http.Client
	UserAgent string
	Logger    *zap.Logger
}

// Name returns the connector identifier.
func (c *ArxivConnector) Name() string { return types.SourceArxiv }

// Search returns up to maxResults papers sorted by relevance.
func (c *ArxivConnector) Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error) {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("empty arXiv query")
	}
	params := url.Values{
		"search_query": {"all:" + strings.Join(terms, " ")},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(orDefault(maxResults))},
		"sortBy":       {"relevance"},
		"sortOrder":    {"descending"},
	}
	return c.fetch(ctx, params)
}

// ByCategory returns the most recently submitted papers in an arXiv
// category such as "cs.AI".
func (c *ArxivConnector) ByCategory(ctx context.Context, category string, maxResults int) ([]types.Paper, error) {
	if category == "" {
		return nil, fmt.Errorf("empty arXiv category")
	}
	params := url.Values{
		"search_query": {"cat:" + category},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(orDefault(maxResults))},
		"sortBy":       {"submittedDate"},
		"sortOrder":    {"descending"},
	}
	return c.fetch(ctx, params)
}

// ByID fetches one paper by arXiv identifier (with or without version).
func (c *ArxivConnector) ByID(ctx context.Context, id string) (types.Paper, error) {
	papers, err := c.fetch(ctx, url.Values{"id_list": {id}})
	if err != nil {
		return types.Paper{}, err
	}
	if len(papers) == 0 {
		return types.Paper{}, fmt.Errorf("arXiv %s: %w", id, ErrPaperNotFound)
	}
	return papers[0], nil
}

func (c *ArxivConnector) fetch(ctx context.Context, params url.Values) ([]types.Paper, error) {
	reqURL := arxivAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := (&httputil.Retrier{Client: c.client(), Logger: c.Logger}).Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}

	var papers []types.Paper
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		p := types.Paper{
			Identifier: arxivID,
			Title:      collapseSpace(entry.Title),
			Summary:    strings.TrimSpace(entry.Summary),
			Source:     arxivLabel,
			URL:        entry.ID,
		}
		for _, a := range entry.Authors {
			p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
		}
		for _, cat := range entry.Categories {
			p.Categories = append(p.Categories, cat.Term)
		}
		for _, l := range entry.Links {
			if l.Title == "pdf" || l.Type == "application/pdf" {
				p.PDFURL = l.Href
			}
		}
		if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
			p.Published = t
			p.Year = t.Year()
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func (c *ArxivConnector) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Links      []arxivLink     `xml:"link"`
	Categories []arxivCategory `xml:"category"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// collapseSpace joins the line-wrapped titles arXiv returns.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orDefault(maxResults int) int {
	if maxResults <= 0 {
		return defaultMaxResults
	}
	return maxResults
}
