// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// serperAPIBase is the Serper web search endpoint. Declared as a var so
// tests can substitute an httptest server.
var serperAPIBase = "https://google.serper.dev/search"

// ErrMissingSerperKey is returned when a Serper connector is built without
// an API key.
var ErrMissingSerperKey = errors.New("serper API key not configured")

// scholarSuffix narrows a Serper query toward scholarly documents.
const scholarSuffix = " site:scholar.google.com OR filetype:pdf research paper"

// academicDomains are the link substrings the scholar connector keeps.
var academicDomains = []string{
	"scholar.google", "arxiv", "acm.org", "ieee.org", "springer", "sciencedirect",
}

var yearPattern = regexp.MustCompile(`\b(20\d{2})\b`)

// SerperConnector searches Google through the Serper API. With Scholar set
// it rewrites the query toward scholarly documents and drops results that
// are not on an academic domain.
type SerperConnector struct {
	client  *http.Client
	apiKey  string
	scholar bool

	// Logger receives retry and throttling events.
	Logger *zap.Logger
}

// NewWebConnector returns the "web" connector.
func NewWebConnector(client *http.Client, apiKey string) (*SerperConnector, error) {
	return newSerper(client, apiKey, false)
}

// NewScholarConnector returns the "scholar" connector.
func NewScholarConnector(client *http.Client, apiKey string) (*SerperConnector, error) {
	return newSerper(client, apiKey, true)
}

func newSerper(client *http.Client, apiKey string, scholar bool) (*SerperConnector, error) {
	if apiKey == "" {
		return nil, ErrMissingSerperKey
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &SerperConnector{client: client, apiKey: apiKey, scholar: scholar}, nil
}

// Name returns "web" or "scholar".
func (c *SerperConnector) Name() string {
	if c.scholar {
		return types.SourceScholar
	}
	return types.SourceWeb
}

// Search posts the query to Serper and maps organic results to papers.
func (c *SerperConnector) Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty Serper query")
	}
	q := query
	if c.scholar {
		q += scholarSuffix
	}

	body, err := json.Marshal(serperRequest{Q: q, Num: orDefault(maxResults)})
	if err != nil {
		return nil, fmt.Errorf("encoding Serper request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&httputil.Retrier{Client: c.client, Logger: c.Logger}).Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Serper API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Serper API returned HTTP %d", resp.StatusCode)
	}

	var sr serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Serper response: %w", err)
	}

	var papers []types.Paper
	for _, item := range sr.Organic {
		if c.scholar && !isAcademicLink(item.Link) {
			continue
		}
		papers = append(papers, types.Paper{
			Identifier: item.Link,
			Title:      item.Title,
			Snippet:    item.Snippet,
			URL:        item.Link,
			Year:       extractYear(item.Title + " " + item.Snippet),
			Source:     c.Name(),
		})
	}
	return papers, nil
}

func isAcademicLink(link string) bool {
	for _, d := range academicDomains {
		if strings.Contains(link, d) {
			return true
		}
	}
	return false
}

// extractYear returns the first 20xx year in s, or 0.
func extractYear(s string) int {
	m := yearPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
}

type serperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}
