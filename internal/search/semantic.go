// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
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

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,citationCount,url,openAccessPdf"

// SemanticScholarConnector queries the Semantic Scholar graph API.
type SemanticScholarConnector struct {
	Client    *http.Client
	APIKey    string
	UserAgent string
	Logger    *zap.Logger
}

// Name returns the connector identifier.
func (c *SemanticScholarConnector) Name() string { return types.SourceSemanticScholar }

// Search queries the Semantic Scholar API and returns papers with citation
// counts.
func (c *SemanticScholarConnector) Search(ctx context.Context, query string, maxResults int) ([]types.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty Semantic Scholar query")
	}

	params := url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(orDefault(maxResults))},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := (&httputil.Retrier{Client: client, Logger: c.Logger}).Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Semantic Scholar API returned HTTP %d", resp.StatusCode)
	}

	var sr semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing Semantic Scholar response: %w", err)
	}

	papers := make([]types.Paper, 0, len(sr.Data))
	for _, sp := range sr.Data {
		p := types.Paper{
			Title:     sp.Title,
			Summary:   sp.Abstract,
			Year:      sp.Year,
			Citations: sp.CitationCount,
			URL:       sp.URL,
			Source:    types.SourceSemanticScholar,
		}
		for _, a := range sp.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		if sp.PublicationDate != "" {
			if t, parseErr := time.Parse("2006-01-02", sp.PublicationDate); parseErr == nil {
				p.Published = t
			}
		}
		if sp.OpenAccessPDF != nil {
			p.PDFURL = sp.OpenAccessPDF.URL
		}

		// Prefer the arXiv ID, then the DOI, so duplicates across
		// connectors share an identifier.
		switch {
		case sp.ExternalIDs.ArXiv != "":
			p.Identifier = sp.ExternalIDs.ArXiv
		case sp.ExternalIDs.DOI != "":
			p.Identifier = sp.ExternalIDs.DOI
		default:
			p.Identifier = sp.PaperID
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Semantic Scholar API JSON structures.
type semanticResponse struct {
	Total int             `json:"total"`
	Data  []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	CitationCount   *int                `json:"citationCount"`
	URL             string              `json:"url"`
	Authors         []semanticAuthor    `json:"authors"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF   *semanticPDF        `json:"openAccessPdf"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type semanticPDF struct {
	URL string `json:"url"`
}
