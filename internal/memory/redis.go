// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/research-assistant/pkg/types"
)

const defaultRedisKey = "research-assistant:memory"

// RedisBank keeps the bank in one Redis hash: field is the memory key and
// value is the JSON-encoded entry.
type RedisBank struct {
	client *redis.Client
	key    string
}

// NewRedis connects lazily to addr; the first command dials.
func NewRedis(addr string, db int, key string) *RedisBank {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr, DB: db}), key)
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, key string) *RedisBank {
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisBank{client: client, key: key}
}

func (b *RedisBank) Store(ctx context.Context, key string, entry types.MemoryEntry) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding memory entry %s: %w", key, err)
	}
	if err := b.client.HSet(ctx, b.key, key, data).Err(); err != nil {
		return fmt.Errorf("storing memory %s: %w", key, err)
	}
	return nil
}

func (b *RedisBank) Retrieve(ctx context.Context, key string) (types.MemoryEntry, bool, error) {
	data, err := b.client.HGet(ctx, b.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.MemoryEntry{}, false, nil
	}
	if err != nil {
		return types.MemoryEntry{}, false, fmt.Errorf("retrieving memory %s: %w", key, err)
	}
	var e types.MemoryEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return types.MemoryEntry{}, false, fmt.Errorf("decoding memory entry %s: %w", key, err)
	}
	return e, true, nil
}

func (b *RedisBank) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.client.HKeys(ctx, b.key).Result()
	if err != nil {
		return nil, fmt.Errorf("listing memory keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *RedisBank) Len(ctx context.Context) (int, error) {
	n, err := b.client.HLen(ctx, b.key).Result()
	if err != nil {
		return 0, fmt.Errorf("counting memories: %w", err)
	}
	return int(n), nil
}

func (b *RedisBank) Close() error {
	return b.client.Close()
}
