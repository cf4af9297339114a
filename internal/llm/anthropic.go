// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/httputil"
)

// claudeAPIURL is the Claude API endpoint. Package-level var for test substitution.
var claudeAPIURL = "https://api.anthropic.com/v1/messages"

const (
	defaultClaudeModel     = "claude-sonnet-4-5"
	defaultClaudeMaxTokens = 4096
)

// jsonInstruction is appended to prompts that expect structured output,
// since the Messages API has no response schema parameter.
const jsonInstruction = "\n\nRespond with a single JSON value and nothing else."

// Anthropic calls the Claude Messages API over plain HTTP.
type Anthropic struct {
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
	Logger    *zap.Logger
}

// claudeRequest is the request body for the Claude Messages API.
type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response body from the Claude Messages API.
type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Generate sends the prompt and returns the first text block. Throttled
// responses are retried by httputil.
func (c *Anthropic) Generate(ctx context.Context, req Request) (string, error) {
	prompt := req.Prompt
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return "", fmt.Errorf("encoding schema: %w", err)
		}
		prompt += jsonInstruction + " The value must match this JSON Schema:\n" + string(schema)
	}

	model := c.Model
	if model == "" {
		model = defaultClaudeModel
	}
	bodyBytes, err := json.Marshal(claudeRequest{
		Model:     model,
		MaxTokens: firstPositive(req.MaxTokens, c.MaxTokens, defaultClaudeMaxTokens),
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, claudeAPIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := (&httputil.Retrier{Client: c.Client, Logger: c.Logger}).Do(ctx, httpReq)
	if err != nil {
		return "", fmt.Errorf("calling Claude API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("Claude API returned %d: %s", resp.StatusCode, string(body))
	}

	var cResp claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cResp); err != nil {
		return "", fmt.Errorf("decoding Claude response: %w", err)
	}
	for _, block := range cResp.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}
