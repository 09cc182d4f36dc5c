package service

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/redis/go-redis/v9"
)

const orphanLedgerKey = "fileman:orphaned_objects"

// RedisOrphanLedger keeps orphaned object keys in a Redis set so every
// instance's sweeper sees them.
type RedisOrphanLedger struct {
	client *redis.Client
	key    string
}

func NewRedisOrphanLedger(client *redis.Client) *RedisOrphanLedger {
	return &RedisOrphanLedger{client: client, key: orphanLedgerKey}
}

func (l *RedisOrphanLedger) Add(ctx context.Context, key string) error {
	if err := l.client.SAdd(ctx, l.key, key).Err(); err != nil {
		return fmt.Errorf("record orphan %s: %w", key, err)
	}
	return nil
}

// List returns up to max keys in no particular order.
func (l *RedisOrphanLedger) List(ctx context.Context, max int64) ([]string, error) {
	keys, err := l.client.SRandMemberN(ctx, l.key, max).Result()
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}
	return keys, nil
}

func (l *RedisOrphanLedger) Remove(ctx context.Context, key string) error {
	if err := l.client.SRem(ctx, l.key, key).Err(); err != nil {
		return fmt.Errorf("remove orphan %s: %w", key, err)
	}
	return nil
}

// MemoryOrphanLedger is the single-process ledger used when Redis is not
// configured.
type MemoryOrphanLedger struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewMemoryOrphanLedger() *MemoryOrphanLedger {
	return &MemoryOrphanLedger{keys: map[string]struct{}{}}
}

func (l *MemoryOrphanLedger) Add(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys[key] = struct{}{}
	return nil
}

func (l *MemoryOrphanLedger) List(_ context.Context, max int64) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]string, 0, len(l.keys))
	for k := range l.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if max > 0 && int64(len(keys)) > max {
		keys = keys[:max]
	}
	return keys, nil
}

func (l *MemoryOrphanLedger) Remove(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}
