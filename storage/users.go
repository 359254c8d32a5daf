package storage

import (
	"context"
	"fmt"
	"time"

	"taskquest/model"
	"taskquest/points"
)

func scanUser(s rowScanner) (model.User, error) {
	var r UserRow
	if err := s.Scan(r.scanArgs()...); err != nil {
		return model.User{}, err
	}
	return UserFromRow(r), nil
}

func InsertUser(ctx context.Context, q Querier, u model.User) error {
	r := UserToRow(u)
	_, err := q.ExecContext(ctx,
		`INSERT INTO user (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.args()...)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func GetUser(ctx context.Context, q Querier, id string) (model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM user WHERE id = ?`, id))
	if err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

func GetUserByEmail(ctx context.Context, q Querier, email string) (model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM user WHERE email = ? COLLATE NOCASE`, email))
	if err != nil {
		return model.User{}, notFound(err)
	}
	return u, nil
}

func ListUserIDs(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM user ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func UpdateProfile(ctx context.Context, q Querier, id, displayName, avatarURL string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE user SET display_name = ?, avatar_url = ? WHERE id = ?`, displayName, avatarURL, id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return requireAffected(res)
}

func UpdateEmail(ctx context.Context, q Querier, id, email string) error {
	res, err := q.ExecContext(ctx, `UPDATE user SET email = ? WHERE id = ?`, email, id)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	return requireAffected(res)
}

func UpdatePasswordHash(ctx context.Context, q Querier, id, hash string) error {
	res, err := q.ExecContext(ctx, `UPDATE user SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

func SetTwoFactor(ctx context.Context, q Querier, id, secret string, enabled bool) error {
	res, err := q.ExecContext(ctx,
		`UPDATE user SET two_factor_secret = ?, two_factor_enabled = ? WHERE id = ?`, secret, enabled, id)
	if err != nil {
		return fmt.Errorf("update two factor: %w", err)
	}
	return requireAffected(res)
}

func TouchUser(ctx context.Context, q Querier, id string, now time.Time) error {
	_, err := q.ExecContext(ctx, `UPDATE user SET last_active_at = ? WHERE id = ?`, now.UTC(), id)
	return err
}

// AddUserPoints credits points and XP in place and recomputes the level in
// the same statement. completed is added to the completed-task counter.
func AddUserPoints(ctx context.Context, q Querier, id string, pts, xp, completed int) error {
	res, err := q.ExecContext(ctx,
		`UPDATE user SET
			total_points = total_points + ?,
			current_xp = current_xp + ?,
			level = MAX(1, (current_xp + ?) / ? + 1),
			tasks_completed = tasks_completed + ?
		WHERE id = ?`,
		pts, xp, xp, points.XPPerLevel, completed, id)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return requireAffected(res)
}

func IncrementStreak(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE user SET
			current_streak = current_streak + 1,
			longest_streak = MAX(longest_streak, current_streak + 1)
		WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("increment streak: %w", err)
	}
	return requireAffected(res)
}

func ResetStreak(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `UPDATE user SET current_streak = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return requireAffected(res)
}

// RepairLevel rewrites level from current_xp for rows that drifted.
func RepairLevel(ctx context.Context, q Querier, id string) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE user SET level = MAX(1, current_xp / ? + 1)
		WHERE id = ? AND level != MAX(1, current_xp / ? + 1)`,
		points.XPPerLevel, id, points.XPPerLevel)
	if err != nil {
		return false, fmt.Errorf("repair level: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteUser removes the user; foreign keys cascade to every owned row.
func DeleteUser(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM user WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res)
}
