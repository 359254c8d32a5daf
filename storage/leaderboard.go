package storage

import (
	"context"
	"fmt"
	"time"

	"taskquest/model"
)

// RefreshLeaderboard rebuilds the ranking table from users and their stats.
// Ties on points go to the older account.
func RefreshLeaderboard(ctx context.Context, q Querier, now time.Time) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM leaderboard`); err != nil {
		return fmt.Errorf("clear leaderboard: %w", err)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO leaderboard (user_id, display_name, avatar_url, level, total_points,
			weekly_points, current_streak, rank, updated_at)
		SELECT u.id, u.display_name, u.avatar_url, u.level, u.total_points,
			COALESCE(s.weekly_points, 0), u.current_streak,
			ROW_NUMBER() OVER (ORDER BY u.total_points DESC, u.created_at ASC, u.id ASC),
			?
		FROM user u LEFT JOIN user_stats s ON s.user_id = u.id`,
		now.UTC())
	if err != nil {
		return fmt.Errorf("rebuild leaderboard: %w", err)
	}
	return nil
}

func queryRanks(ctx context.Context, q Querier, query string, args ...any) ([]model.UserRank, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.UserRank{}
	for rows.Next() {
		var r model.UserRank
		if err := rows.Scan(&r.Rank, &r.UserID, &r.DisplayName, &r.AvatarURL, &r.Level,
			&r.TotalPoints, &r.WeeklyPoints, &r.CurrentStreak); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func TopRanks(ctx context.Context, q Querier, limit int) ([]model.UserRank, error) {
	return queryRanks(ctx, q,
		`SELECT rank, user_id, display_name, avatar_url, level, total_points, weekly_points, current_streak
		FROM leaderboard ORDER BY rank LIMIT ?`, limit)
}

// WeeklyRanks orders by points earned since Monday. Rank is positional.
func WeeklyRanks(ctx context.Context, q Querier, limit int) ([]model.UserRank, error) {
	return queryRanks(ctx, q,
		`SELECT ROW_NUMBER() OVER (ORDER BY weekly_points DESC, rank ASC), user_id, display_name,
			avatar_url, level, total_points, weekly_points, current_streak
		FROM leaderboard ORDER BY weekly_points DESC, rank ASC LIMIT ?`, limit)
}

func GetRank(ctx context.Context, q Querier, userID string) (model.UserRank, error) {
	list, err := queryRanks(ctx, q,
		`SELECT rank, user_id, display_name, avatar_url, level, total_points, weekly_points, current_streak
		FROM leaderboard WHERE user_id = ?`, userID)
	if err != nil {
		return model.UserRank{}, err
	}
	if len(list) == 0 {
		return model.UserRank{}, ErrNotFound
	}
	return list[0], nil
}
