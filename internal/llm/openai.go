// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI generates text with the chat completions API. BaseURL lets it talk
// to any OpenAI-compatible server.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI client for cfg.Model (default gpt-4o-mini).
func NewOpenAI(cfg types.LLMConfig, httpClient *http.Client) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), model: model, maxTokens: cfg.MaxTokens}
}

// Generate sends the prompt as one user message. With a schema the reply is
// requested through the json_schema response format.
func (o *OpenAI) Generate(ctx context.Context, req Request) (string, error) {
	cr := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens: firstPositive(req.MaxTokens, o.maxTokens),
	}
	if req.Schema != nil {
		cr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "response",
				Schema: req.Schema,
			},
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return "", fmt.Errorf("OpenAI chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
