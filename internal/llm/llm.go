// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps the text-generation providers behind one Generator
// interface. Callers that need structured output set Request.Schema and
// decode the reply with DecodeJSON; nothing in this package tries to salvage
// JSON from free-form prose.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// Generator produces text for a prompt. Implementations must be safe for
// sequential use; none of the callers share a Generator across goroutines.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is one generation call.
type Request struct {
	Prompt string

	// Schema, when set, asks the provider for JSON matching the schema.
	Schema *Schema

	// MaxTokens overrides the configured output limit when positive.
	MaxTokens int
}

// New builds the Generator selected by cfg.Provider. The logger only
// reaches the raw-HTTP Anthropic client; the SDK clients log nothing.
func New(ctx context.Context, cfg types.LLMConfig, client *http.Client, logger *zap.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key not configured", cfg.Provider)
	}
	switch cfg.Provider {
	case types.ProviderGemini, "":
		return NewGemini(ctx, cfg, client)
	case types.ProviderOpenAI:
		return NewOpenAI(cfg, client), nil
	case types.ProviderAnthropic:
		return &Anthropic{APIKey: cfg.APIKey, Model: cfg.Model, MaxTokens: cfg.MaxTokens, Client: client, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// Render executes a prompt template with data.
func Render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// CallRecorder receives one notification per generation call.
type CallRecorder interface {
	RecordAPICall(ctx context.Context, provider string, elapsed time.Duration, err error)
}

// Instrumented reports every call on Next to Recorder and logs failures.
type Instrumented struct {
	Next     Generator
	Provider string
	Recorder CallRecorder
	Logger   *zap.Logger
}

// Generate forwards to Next.
func (g *Instrumented) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := g.Next.Generate(ctx, req)
	elapsed := time.Since(start)

	if g.Recorder != nil {
		g.Recorder.RecordAPICall(ctx, g.Provider, elapsed, err)
	}
	if err != nil && g.Logger != nil {
		g.Logger.Warn("generation failed",
			zap.String("provider", g.Provider),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	}
	return text, err
}
