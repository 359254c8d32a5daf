package storage

import (
	"context"
	"fmt"

	"taskquest/model"
)

func InsertAchievements(ctx context.Context, q Querier, list []model.Achievement) error {
	for _, a := range list {
		r := AchievementToRow(a)
		_, err := q.ExecContext(ctx,
			`INSERT INTO achievements (`+achievementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			r.ID, r.UserID, r.Type, r.Title, r.Description, r.Target, r.Progress,
			r.PointsReward, r.Unlocked, r.UnlockedAt, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert achievement: %w", err)
		}
	}
	return nil
}

func ListAchievements(ctx context.Context, q Querier, userID string) ([]model.Achievement, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+achievementColumns+` FROM achievements WHERE user_id = ?
		ORDER BY unlocked DESC, type, target`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Achievement{}
	for rows.Next() {
		var r AchievementRow
		if err := rows.Scan(r.scanArgs()...); err != nil {
			return nil, err
		}
		out = append(out, AchievementFromRow(r))
	}
	return out, rows.Err()
}

// SaveAchievementProgress persists progress. An unlocked row is never
// re-locked.
func SaveAchievementProgress(ctx context.Context, q Querier, a model.Achievement) error {
	r := AchievementToRow(a)
	_, err := q.ExecContext(ctx,
		`UPDATE achievements SET progress = ?, unlocked = ?, unlocked_at = ?
		WHERE id = ? AND unlocked = 0`,
		r.Progress, r.Unlocked, r.UnlockedAt, r.ID)
	if err != nil {
		return fmt.Errorf("save achievement: %w", err)
	}
	return nil
}
