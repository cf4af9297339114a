// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"
)

// QueryFile is the on-disk form of a search and its results. A saved search
// can be analyzed later without re-querying the APIs.
type QueryFile struct {
	Query   string       `yaml:"query"`
	Sources []string     `yaml:"sources"`
	Config  QueryConfig  `yaml:"config"`
	Outcome Outcome      `yaml:"outcome"`
	Summary QuerySummary `yaml:"summary"`
}

// QueryConfig records the options that produced the results.
type QueryConfig struct {
	MaxResults int  `yaml:"max_results"`
	Dedup      bool `yaml:"dedup"`
	YearMin    int  `yaml:"year_min,omitempty"`
	YearMax    int  `yaml:"year_max,omitempty"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total             int       `yaml:"total"`
	DuplicatesRemoved int       `yaml:"duplicates_removed"`
	FailedSources     int       `yaml:"failed_sources"`
	Timestamp         time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves an outcome to a YAML file, creating parent
// directories as needed.
func WriteQueryFile(path string, cfg QueryConfig, dupsRemoved int, out Outcome) error {
	qf := QueryFile{
		Query:   out.Query,
		Sources: out.SourcesSearched,
		Config:  cfg,
		Outcome: out,
		Summary: QuerySummary{
			Total:             out.TotalFound,
			DuplicatesRemoved: dupsRemoved,
			FailedSources:     len(out.Errors),
			Timestamp:         time.Now(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}
