package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// PaymentIDKey holds the provider payment id between create and execute.
	PaymentIDKey = "paypal_payment_id"

	FlashLevelKey   = "flash_level"
	FlashMessageKey = "flash_message"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("session value not found")

// Store keeps per-session values server side. Take is a single-use read:
// once it returns a value, no other Take or Get for that key will.
type Store interface {
	Put(ctx context.Context, sessionID, key, value string, ttl time.Duration) error
	Get(ctx context.Context, sessionID, key string) (string, error)
	Take(ctx context.Context, sessionID, key string) (string, error)
}

func storageKey(sessionID, key string) string {
	return fmt.Sprintf("session:%s:%s", sessionID, key)
}

// RedisStore is a Store backed by Redis keys with TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, sessionID, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, storageKey(sessionID, key), value, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (string, error) {
	val, err := s.client.Get(ctx, storageKey(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Take(ctx context.Context, sessionID, key string) (string, error) {
	val, err := s.client.GetDel(ctx, storageKey(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// memorySweepInterval bounds how often Put scans for expired entries.
const memorySweepInterval = time.Minute

// MemoryStore is an in-process Store for single-instance deployments and tests.
// Expired entries are dropped on access and by a periodic sweep on Put, so
// abandoned sessions do not accumulate.
type MemoryStore struct {
	mu            sync.Mutex
	entries       map[string]memoryEntry
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:       make(map[string]memoryEntry),
		now:           time.Now,
		sweepInterval: memorySweepInterval,
	}
}

func (s *MemoryStore) Put(_ context.Context, sessionID, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.sweepInterval {
		s.sweep(now)
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.entries[storageKey(sessionID, key)] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(storageKey(sessionID, key))
}

func (s *MemoryStore) Take(_ context.Context, sessionID, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := storageKey(sessionID, key)
	val, err := s.lookup(k)
	delete(s.entries, k)
	return val, err
}

// lookup must be called with s.mu held.
func (s *MemoryStore) lookup(k string) (string, error) {
	entry, ok := s.entries[k]
	if !ok {
		return "", ErrNotFound
	}
	if entry.expired(s.now()) {
		delete(s.entries, k)
		return "", ErrNotFound
	}
	return entry.value, nil
}

// sweep must be called with s.mu held.
func (s *MemoryStore) sweep(now time.Time) {
	for k, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, k)
		}
	}
	s.lastSweep = now
}

// Len reports the number of entries held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
