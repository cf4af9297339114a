// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
)

const (
	defaultContextTokens = 2000
	charsPerToken        = 4
)

var compressPromptTmpl = template.Must(template.New("compress").Parse(`Summarize this research context concisely (under {{.MaxTokens}} tokens):

{{.Context}}

Focus on: key findings, important papers, research direction.
Return a brief summary.`))

// CompressContext asks the model to summarize the session context in under
// maxTokens tokens. If the call fails, the compact JSON context is cut to
// maxTokens*4 characters instead. An empty context yields "".
func (o *Orchestrator) CompressContext(ctx context.Context, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = defaultContextTokens
	}

	o.mu.Lock()
	if len(o.session) == 0 {
		o.mu.Unlock()
		return ""
	}
	pretty, perr := json.MarshalIndent(o.session, "", "  ")
	compact := o.contextJSONLocked()
	o.mu.Unlock()

	o.logger().Debug("compressing context",
		zap.Int("tokens", o.tokens(compact)),
		zap.Int("max_tokens", maxTokens),
	)

	summary, err := o.summarize(ctx, string(pretty), perr, maxTokens)
	if err == nil {
		return summary
	}
	o.logger().Warn("context summary failed, truncating", zap.Error(err))
	o.observeError(ctx, err)
	return truncateRunes(compact, maxTokens*charsPerToken)
}

func (o *Orchestrator) summarize(ctx context.Context, contextJSON string, encErr error, maxTokens int) (string, error) {
	if encErr != nil {
		return "", fmt.Errorf("encoding session context: %w", encErr)
	}
	if o.LLM == nil {
		return "", errNoLLM
	}
	prompt, err := llm.Render(compressPromptTmpl, struct {
		MaxTokens int
		Context   string
	}{maxTokens, contextJSON})
	if err != nil {
		return "", err
	}
	reply, err := o.LLM.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: maxTokens})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", llm.ErrEmptyResponse
	}
	return reply, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// TiktokenCounter returns a token counter for the named encoding (for
// example "cl100k_base"). Loading an encoding may download its BPE file
// on first use; callers fall back to the byte estimate on error.
func TiktokenCounter(encoding string) (func(string) int, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", encoding, err)
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}

// loadCounter is swapped in tests to avoid fetching encodings.
var loadCounter = TiktokenCounter

// LazyTiktokenCounter returns a counter that loads encoding on its first
// use. tiktoken may download the ranks file on a cold cache, so commands
// that never measure context never touch the network. When loading fails
// the counter estimates four bytes per token.
func LazyTiktokenCounter(encoding string, logger *zap.Logger) func(string) int {
	var (
		once  sync.Once
		count func(string) int
	)
	return func(s string) int {
		once.Do(func() {
			c, err := loadCounter(encoding)
			if err != nil {
				if logger != nil {
					logger.Debug("token counter unavailable, estimating", zap.Error(err))
				}
				return
			}
			count = c
		})
		if count == nil {
			return estimateTokens(s)
		}
		return count(s)
	}
}
