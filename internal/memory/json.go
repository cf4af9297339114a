// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// JSONBank keeps the whole bank in one JSON object on disk. The file is read
// once when the bank is opened and rewritten in full on every Store. There
// is no locking across processes.
type JSONBank struct {
	path string

	mu      sync.RWMutex
	entries map[string]types.MemoryEntry
}

// OpenJSON loads the bank at path. A missing file is an empty bank.
func OpenJSON(path string) (*JSONBank, error) {
	b := &JSONBank{path: path, entries: map[string]types.MemoryEntry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return b, nil
		}
		return nil, fmt.Errorf("reading memory bank %s: %w", path, err)
	}
	if len(data) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(data, &b.entries); err != nil {
		return nil, fmt.Errorf("parsing memory bank %s: %w", path, err)
	}
	return b, nil
}

// Store sets key and rewrites the file. When the file cannot be written the
// in-memory entry is rolled back, so Retrieve never sees an unsaved value.
func (b *JSONBank) Store(_ context.Context, key string, entry types.MemoryEntry) error {
	if key == "" {
		return ErrEmptyKey
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	prev, existed := b.entries[key]
	b.entries[key] = entry
	if err := b.save(); err != nil {
		if existed {
			b.entries[key] = prev
		} else {
			delete(b.entries, key)
		}
		return err
	}
	return nil
}

func (b *JSONBank) Retrieve(_ context.Context, key string) (types.MemoryEntry, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	return e, ok, nil
}

// Keys returns the stored keys in sorted order.
func (b *JSONBank) Keys(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *JSONBank) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries), nil
}

// Close is a no-op; every Store already flushed to disk.
func (b *JSONBank) Close() error { return nil }

func (b *JSONBank) save() error {
	if dir := filepath.Dir(b.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating memory directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(b.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding memory bank: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("writing memory bank %s: %w", b.path, err)
	}
	return nil
}
