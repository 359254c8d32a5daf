package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskquest/model"

	"github.com/redis/go-redis/v9"
)

// SessionCache keeps active sessions in Redis so the auth middleware can
// skip the database on most requests.
type SessionCache struct {
	client *redis.Client
}

func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{client: client}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Set caches s with a TTL matching its expiry.
func (sc *SessionCache) Set(ctx context.Context, s model.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := sc.client.Set(ctx, sessionKey(s.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session: %w", err)
	}
	return nil
}

// Get reports ok=false on a cache miss.
func (sc *SessionCache) Get(ctx context.Context, sessionID string) (model.Session, bool, error) {
	data, err := sc.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, fmt.Errorf("failed to get session from cache: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Session{}, false, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return s, true, nil
}

func (sc *SessionCache) Delete(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, sessionKey(id))
	}
	if err := sc.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cached sessions: %w", err)
	}
	return nil
}
