// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini generates text with the Gemini API.
type Gemini struct {
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini creates a Gemini client for cfg.Model (default gemini-2.5-flash).
func NewGemini(ctx context.Context, cfg types.LLMConfig, httpClient *http.Client) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &Gemini{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

// Generate sends the prompt as a single user turn. With a schema the reply
// is constrained to application/json.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	gc := &genai.GenerateContentConfig{}
	if n := firstPositive(req.MaxTokens, g.maxTokens); n > 0 {
		gc.MaxOutputTokens = int32(n)
	}
	if req.Schema != nil {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = req.Schema.genai()
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), gc)
	if err != nil {
		return "", fmt.Errorf("Gemini generate: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
