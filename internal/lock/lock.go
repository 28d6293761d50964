// Package lock provides short-lived exclusive locks keyed by calendar event,
// so an event cannot be moved twice while its first write is in flight.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:calendar-event:"

// RedisStore holds move locks in Redis so every API instance sees them.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. Locks expire after ttl even if the
// holder never releases them.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Acquire attempts to take the lock for key.
// Returns true if the lock was acquired, false if already held.
func (s *RedisStore) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, keyPrefix+key, "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lock.RedisStore.Acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock for key.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("lock.RedisStore.Release: %w", err)
	}
	return nil
}

// NewRedisClient parses url, connects, and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("lock.NewRedisClient: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("lock.NewRedisClient: ping: %w", err)
	}
	return client, nil
}

// MemoryStore is the single-process fallback used when no Redis is configured.
type MemoryStore struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryStore creates a MemoryStore whose locks expire after ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{held: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// Acquire takes the lock for key unless it is held and unexpired.
func (s *MemoryStore) Acquire(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.held[key] = now.Add(s.ttl)
	return true, nil
}

// Release drops the lock for key.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.held, key)
	return nil
}
