// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/research-assistant/pkg/types"
)

// SQLiteBank stores entries in a single table. Values are JSON-encoded, so
// retrieved values come back as the generic JSON shapes (map[string]any,
// []any, float64, string, bool).
type SQLiteBank struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and its schema.
func OpenSQLite(path string) (*SQLiteBank, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating memory directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	b := &SQLiteBank{db: db}
	if err := b.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBank) Close() error {
	return b.db.Close()
}

func (b *SQLiteBank) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			importance TEXT,
			context TEXT,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_importance ON memories(importance)`,
	}
	for _, stmt := range statements {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Store upserts key.
func (b *SQLiteBank) Store(ctx context.Context, key string, entry types.MemoryEntry) error {
	if key == "" {
		return ErrEmptyKey
	}
	value, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("encoding memory value %s: %w", key, err)
	}
	_, err = b.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories (key, value, importance, context, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		key, string(value), entry.Importance, entry.Context,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("storing memory %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBank) Retrieve(ctx context.Context, key string) (types.MemoryEntry, bool, error) {
	var (
		value, ts        string
		importance, note sql.NullString
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT value, importance, context, timestamp FROM memories WHERE key = ?`, key,
	).Scan(&value, &importance, &note, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return types.MemoryEntry{}, false, nil
	}
	if err != nil {
		return types.MemoryEntry{}, false, fmt.Errorf("retrieving memory %s: %w", key, err)
	}

	e := types.MemoryEntry{Importance: importance.String, Context: note.String}
	if err := json.Unmarshal([]byte(value), &e.Value); err != nil {
		return types.MemoryEntry{}, false, fmt.Errorf("decoding memory value %s: %w", key, err)
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		e.Timestamp = t
	}
	return e, true, nil
}

func (b *SQLiteBank) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM memories ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing memory keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning memory key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (b *SQLiteBank) Len(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT count(*) FROM memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return n, nil
}
