// ABOUTME: Token mirror stores: the service-side analog of the browser localStorage mirror
// ABOUTME: In-memory store for single instances, Redis store for shared/restart survival

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenStore mirrors the current token outside the manager's memory so a
// restart (or a sibling replica) can adopt it instead of re-acquiring.
// Save and Clear are full replaces, never merges.
type TokenStore interface {
	Load(ctx context.Context) (token string, expiresAt time.Time, err error)
	Save(ctx context.Context, token string, expiresAt time.Time) error
	Clear(ctx context.Context) error
}

// MemoryTokenStore keeps the mirror in process memory. Used when no Redis
// URL is configured; survives nothing, but keeps the manager code uniform.
type MemoryTokenStore struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Load(ctx context.Context) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.expiresAt, nil
}

func (s *MemoryTokenStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	return nil
}

func (s *MemoryTokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
	return nil
}

const redisTokenKey = "deliverables:odata:token"

type mirroredToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// RedisTokenStore mirrors the token into Redis with a TTL bound to the
// token expiry, so stale entries vanish on their own.
type RedisTokenStore struct {
	client *redis.Client
}

// NewRedisTokenStore connects using a redis:// URL.
func NewRedisTokenStore(redisURL string) (*RedisTokenStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisTokenStore{client: client}, nil
}

func (s *RedisTokenStore) Load(ctx context.Context) (string, time.Time, error) {
	raw, err := s.client.Get(ctx, redisTokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("load mirrored token: %w", err)
	}

	var mt mirroredToken
	if err := json.Unmarshal([]byte(raw), &mt); err != nil {
		return "", time.Time{}, fmt.Errorf("parse mirrored token: %w", err)
	}
	return mt.AccessToken, mt.ExpiresAt, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return s.Clear(ctx)
	}

	raw, err := json.Marshal(mirroredToken{AccessToken: token, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encode mirrored token: %w", err)
	}
	if err := s.client.Set(ctx, redisTokenKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save mirrored token: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, redisTokenKey).Err(); err != nil {
		return fmt.Errorf("clear mirrored token: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
