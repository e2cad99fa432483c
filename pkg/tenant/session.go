package tenant

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore caches the resolved tenant for a session so later requests in
// the same session skip re-resolution.
type SessionStore interface {
	// GetTenant returns the cached organization ID for a session, if any
	GetTenant(ctx context.Context, sessionID string) (int64, bool, error)

	// SetTenant caches the organization ID for a session
	SetTenant(ctx context.Context, sessionID string, orgID int64) error

	// ClearTenant drops the cached organization for a session
	ClearTenant(ctx context.Context, sessionID string) error
}

// RedisSessionStore implements SessionStore on Redis
type RedisSessionStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisSessionStore creates a session store backed by Redis
func NewRedisSessionStore(addr, password string, db int, ttl time.Duration) (*RedisSessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSessionStore{redis: client, ttl: ttl}, nil
}

// NewRedisSessionStoreFromClient wraps an existing Redis client
func NewRedisSessionStoreFromClient(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{redis: client, ttl: ttl}
}

// Close closes the Redis connection
func (s *RedisSessionStore) Close() error {
	return s.redis.Close()
}

func sessionTenantKey(sessionID string) string {
	return "session:" + sessionID + ":tenant"
}

// GetTenant returns the cached organization ID for a session
func (s *RedisSessionStore) GetTenant(ctx context.Context, sessionID string) (int64, bool, error) {
	val, err := s.redis.Get(ctx, sessionTenantKey(sessionID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get session tenant: %w", err)
	}

	orgID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt session tenant value: %w", err)
	}

	return orgID, true, nil
}

// SetTenant caches the organization ID for a session
func (s *RedisSessionStore) SetTenant(ctx context.Context, sessionID string, orgID int64) error {
	err := s.redis.Set(ctx, sessionTenantKey(sessionID), strconv.FormatInt(orgID, 10), s.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session tenant: %w", err)
	}
	return nil
}

// ClearTenant drops the cached organization for a session
func (s *RedisSessionStore) ClearTenant(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, sessionTenantKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session tenant: %w", err)
	}
	return nil
}
