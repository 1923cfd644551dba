package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// brainKey is the Redis key holding the exported brain blob.
	brainKey = "bot:brain:state"

	// brainTTL keeps stale snapshots from living forever on an
	// abandoned deployment.
	brainTTL = 30 * 24 * time.Hour

	redisTimeout = 3 * time.Second
)

// RedisStore persists the brain blob in Redis. When Redis is unavailable
// it falls back to an in-memory copy so trading continues uninterrupted;
// the fallback is flushed to Redis on the next successful save.
type RedisStore struct {
	mu       sync.Mutex
	client   *redis.Client
	logger   zerolog.Logger
	fallback string
	hasLocal bool
}

// NewRedisStore creates a Redis-backed brain store.
func NewRedisStore(addr, password string, db int, logger zerolog.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "persistence").Logger(),
	}
}

// SaveBrain writes the blob to Redis, keeping an in-memory copy as
// fallback either way.
func (s *RedisStore) SaveBrain(state string) SaveResult {
	s.mu.Lock()
	s.fallback = state
	s.hasLocal = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.client.Set(ctx, brainKey, state, brainTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("redis save failed, state kept in memory")
		return SaveResult{Success: false, Message: "redis unavailable: " + err.Error()}
	}
	return SaveResult{Success: true, Message: "saved"}
}

// LoadBrain reads the blob from Redis, falling back to the in-memory copy.
func (s *RedisStore) LoadBrain() (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	state, err := s.client.Get(ctx, brainKey).Result()
	if err == nil {
		return state, true
	}
	if err != redis.Nil {
		s.logger.Warn().Err(err).Msg("redis load failed, trying in-memory fallback")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasLocal {
		return s.fallback, true
	}
	return "", false
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore is an in-memory Client for tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	state string
	saved bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveBrain(state string) SaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saved = true
	return SaveResult{Success: true, Message: "saved"}
}

func (s *MemoryStore) LoadBrain() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.saved
}
