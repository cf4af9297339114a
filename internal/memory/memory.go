// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package memory implements the long-term memory bank: a key/value store of
// MemoryEntry records that outlives a single research session. Three
// backends share the Bank interface: a JSON file (the default), a SQLite
// table, and a Redis hash.
package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// ErrEmptyKey is returned when Store is called without a key.
var ErrEmptyKey = errors.New("memory key is empty")

// Bank stores and retrieves memory entries by key. Storing an existing key
// replaces its entry.
type Bank interface {
	Store(ctx context.Context, key string, entry types.MemoryEntry) error
	Retrieve(ctx context.Context, key string) (types.MemoryEntry, bool, error)
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
	Close() error
}

// Open builds the bank selected by cfg.Backend. An empty backend means json.
// On error the returned Bank is nil.
func Open(cfg types.MemoryConfig) (Bank, error) {
	switch cfg.Backend {
	case types.MemoryJSON, "":
		b, err := OpenJSON(cfg.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case types.MemorySQLite:
		b, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return b, nil
	case types.MemoryRedis:
		return NewRedis(cfg.RedisAddr, cfg.RedisDB, cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown memory backend %q", cfg.Backend)
	}
}
