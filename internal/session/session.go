// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session holds one conversation with the assistant: the message
// history, what has been researched so far, and the chat and query
// planning calls that draw on both. Sessions save to and load from JSON.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/research-assistant/internal/llm"
	"github.com/pdiddy/research-assistant/pkg/types"
)

const (
	chatWindow     = 6
	summaryQueries = 3
	maxSteps       = 4
)

// Research tracks what the session has looked for.
type Research struct {
	QueriesMade []string          `json:"queries_made"`
	PapersFound int               `json:"papers_found"`
	Preferences map[string]string `json:"user_preferences,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	LLM    llm.Generator
	Logger *zap.Logger

	mu       sync.Mutex
	id       string
	history  []types.Message
	research Research
}

// New starts an empty session with a fresh ID.
func New(model llm.Generator, logger *zap.Logger) *Session {
	return &Session{LLM: model, Logger: logger, id: uuid.NewString()}
}

// ID identifies the session across save and load.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// AddMessage appends a message to the history.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, types.Message{Role: role, Content: content, Timestamp: time.Now()})
}

// History returns the conversation so far, oldest first.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Message(nil), s.history...)
}

// RecordSearch notes a query and how many papers it found.
func (s *Session) RecordSearch(query string, papers int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.research.QueriesMade = append(s.research.QueriesMade, query)
	s.research.PapersFound += papers
}

// Research returns a copy of the research context.
func (s *Session) Research() Research {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.research
	r.QueriesMade = append([]string(nil), r.QueriesMade...)
	return r
}

// ContextSummary describes the session in one line: the last three
// queries and the papers found so far, or "New research session".
func (s *Session) ContextSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() string {
	var parts []string
	if q := s.research.QueriesMade; len(q) > 0 {
		recent := q[max(0, len(q)-summaryQueries):]
		parts = append(parts, "Previous queries: "+strings.Join(recent, ", "))
	}
	if s.research.PapersFound > 0 {
		parts = append(parts, fmt.Sprintf("Found %d papers so far", s.research.PapersFound))
	}
	if len(parts) == 0 {
		return "New research session"
	}
	return strings.Join(parts, " | ")
}

var chatPromptTmpl = template.Must(template.New("chat").Parse(`You are an intelligent research assistant agent.

Conversation History:
{{range .History}}{{.Role}}: {{.Content}}
{{end}}
Research Context: {{.Summary}}

User: {{.Message}}

Respond helpfully. If they're asking for research help, indicate you'll search for papers.`))

// Chat sends msg with the recent history and returns the reply. Both turns
// are recorded. A failed model call is returned as "Error: <err>" and
// recorded the same way.
func (s *Session) Chat(ctx context.Context, msg string) string {
	s.mu.Lock()
	s.history = append(s.history, types.Message{Role: types.RoleUser, Content: msg, Timestamp: time.Now()})
	window := s.history[max(0, len(s.history)-chatWindow) : len(s.history)-1]
	data := struct {
		History []types.Message
		Summary string
		Message string
	}{append([]types.Message(nil), window...), s.summaryLocked(), msg}
	s.mu.Unlock()

	reply, err := s.generate(ctx, chatPromptTmpl, data, nil)
	if err != nil {
		s.logger().Warn("chat failed", zap.Error(err))
		reply = "Error: " + err.Error()
	}
	s.AddMessage(types.RoleAssistant, reply)
	return reply
}

var stepsPromptTmpl = template.Must(template.New("steps").Parse(`You are a research planning assistant. Break down this research query into 2-4 specific search steps.

Query: {{.Query}}
Context: {{.Summary}}

Return a JSON array of search query strings, for example:
["machine learning healthcare applications", "recent ML healthcare papers 2024", "healthcare ML evaluation metrics"]`))

// PlanSteps splits query into two to four search strings. Any failure,
// including a reply that is not a JSON array of strings, yields [query].
func (s *Session) PlanSteps(ctx context.Context, query string) []string {
	data := struct{ Query, Summary string }{query, s.ContextSummary()}
	reply, err := s.generate(ctx, stepsPromptTmpl, data, llm.StringArray("Search queries"))
	if err != nil {
		s.logger().Warn("step planning failed", zap.Error(err))
		return []string{query}
	}

	var steps []string
	if err := llm.DecodeJSON(reply, &steps); err != nil {
		s.logger().Warn("step planning reply rejected", zap.Error(err))
		return []string{query}
	}
	var out []string
	for _, st := range steps {
		if st = strings.TrimSpace(st); st != "" {
			out = append(out, st)
		}
	}
	if len(out) == 0 {
		return []string{query}
	}
	return out[:min(maxSteps, len(out))]
}

func (s *Session) generate(ctx context.Context, t *template.Template, data any, schema *llm.Schema) (string, error) {
	if s.LLM == nil {
		return "", errors.New("no language model configured")
	}
	prompt, err := llm.Render(t, data)
	if err != nil {
		return "", err
	}
	return s.LLM.Generate(ctx, llm.Request{Prompt: prompt, Schema: schema})
}

func (s *Session) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// file is the on-disk session format.
type file struct {
	ID       string          `json:"id"`
	History  []types.Message `json:"conversation_history"`
	Research Research        `json:"research_context"`
	SavedAt  time.Time       `json:"timestamp"`
}

// Save writes the session to path, creating parent directories.
func (s *Session) Save(path string) error {
	s.mu.Lock()
	f := file{ID: s.id, History: s.history, Research: s.research, SavedAt: time.Now()}
	data, err := json.MarshalIndent(f, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing session %s: %w", path, err)
	}
	return nil
}

// Load replaces the session's history and research context with those
// saved at path. On error the session is unchanged.
func (s *Session) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading session %s: %w", path, err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing session %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID != "" {
		s.id = f.ID
	}
	s.history = f.History
	s.research = f.Research
	return nil
}
