// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. Keys missing from the directory fall back to
// the environment variable paired with them in Env.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Key file names understood by the CLI.
const (
	GoogleAPIKey          = "google-api-key"
	OpenAIAPIKey          = "openai-api-key"
	AnthropicAPIKey       = "anthropic-api-key"
	SerperAPIKey          = "serper-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	OpenAlexEmail         = "openalex-email"
)

// Env maps each key file to the environment variable consulted when the file is absent.
var Env = map[string]string{
	GoogleAPIKey:          "GOOGLE_API_KEY",
	OpenAIAPIKey:          "OPENAI_API_KEY",
	AnthropicAPIKey:       "ANTHROPIC_API_KEY",
	SerperAPIKey:          "SERPER_API_KEY",
	SemanticScholarAPIKey: "SEMANTIC_SCHOLAR_API_KEY",
	OpenAlexEmail:         "OPENALEX_EMAIL",
}

// Set is the result of Load.
type Set map[string]string

// Load reads every regular, non-hidden file in dir. A missing directory is
// an empty Set. Files that cannot be read are logged and skipped.
func Load(dir string, logger *zap.Logger) (Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	set := make(Set, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("skipping unreadable secret", zap.String("key", name), zap.Error(err))
			continue
		}
		if value := strings.TrimSpace(string(data)); value != "" {
			set[name] = value
		}
	}
	return set, nil
}

// Keys returns the loaded key names, sorted.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the secret stored under key, or the value of its environment
// variable when no file provided it.
func (s Set) Get(key string) string {
	if v, ok := s[key]; ok {
		return v
	}
	if env, ok := Env[key]; ok {
		return strings.TrimSpace(os.Getenv(env))
	}
	return ""
}
