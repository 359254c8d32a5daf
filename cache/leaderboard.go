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

const (
	leaderboardScoresKey = "leaderboard:points"
	leaderboardTopKey    = "leaderboard:top"
)

// Leaderboard mirrors total points in a sorted set and caches the rendered
// top list.
type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboard(client *redis.Client, ttl time.Duration) *Leaderboard {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Leaderboard{client: client, ttl: ttl}
}

// Store replaces the cached top list and refreshes the scores of its users.
func (l *Leaderboard) Store(ctx context.Context, ranks []model.UserRank) error {
	data, err := json.Marshal(ranks)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}

	pipe := l.client.TxPipeline()
	pipe.Set(ctx, leaderboardTopKey, data, l.ttl)
	for _, r := range ranks {
		pipe.ZAdd(ctx, leaderboardScoresKey, redis.Z{Score: float64(r.TotalPoints), Member: r.UserID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache leaderboard: %w", err)
	}
	return nil
}

// Top returns the cached list; ok=false on a miss.
func (l *Leaderboard) Top(ctx context.Context) ([]model.UserRank, bool, error) {
	data, err := l.client.Get(ctx, leaderboardTopKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	var ranks []model.UserRank
	if err := json.Unmarshal(data, &ranks); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal leaderboard: %w", err)
	}
	return ranks, true, nil
}

// SetScore records a user's total and drops the cached top list.
func (l *Leaderboard) SetScore(ctx context.Context, userID string, totalPoints int) error {
	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, leaderboardScoresKey, redis.Z{Score: float64(totalPoints), Member: userID})
	pipe.Del(ctx, leaderboardTopKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	return nil
}

// Position is the 1-based rank of userID by score; ok=false when unknown.
func (l *Leaderboard) Position(ctx context.Context, userID string) (int, bool, error) {
	pos, err := l.client.ZRevRank(ctx, leaderboardScoresKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read rank: %w", err)
	}
	return int(pos) + 1, true, nil
}

func (l *Leaderboard) Remove(ctx context.Context, userID string) error {
	pipe := l.client.TxPipeline()
	pipe.ZRem(ctx, leaderboardScoresKey, userID)
	pipe.Del(ctx, leaderboardTopKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove score: %w", err)
	}
	return nil
}
