package storage

import (
	"context"
	"fmt"
	"time"

	"taskquest/model"
)

func InsertSession(ctx context.Context, q Querier, s model.Session) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_id, device_info, ip_address, created_at,
			expires_at, last_activity_at, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.UserID, s.DeviceInfo, s.IPAddress, s.CreatedAt.UTC(),
		s.ExpiresAt.UTC(), s.LastActivityAt.UTC(), s.IsActive)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `session_id, user_id, device_info, ip_address, created_at, expires_at,
	last_activity_at, is_active`

func scanSession(s rowScanner) (model.Session, error) {
	var out model.Session
	err := s.Scan(&out.SessionID, &out.UserID, &out.DeviceInfo, &out.IPAddress,
		&out.CreatedAt, &out.ExpiresAt, &out.LastActivityAt, &out.IsActive)
	if err != nil {
		return model.Session{}, err
	}
	out.CreatedAt = out.CreatedAt.UTC()
	out.ExpiresAt = out.ExpiresAt.UTC()
	out.LastActivityAt = out.LastActivityAt.UTC()
	return out, nil
}

func GetSession(ctx context.Context, q Querier, id string) (model.Session, error) {
	s, err := scanSession(q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, id))
	if err != nil {
		return model.Session{}, notFound(err)
	}
	return s, nil
}

func ListActiveSessions(ctx context.Context, q Querier, userID string, now time.Time) ([]model.Session, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND is_active = 1 AND expires_at > ?
		ORDER BY last_activity_at DESC`, userID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func TouchSession(ctx context.Context, q Querier, id string, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE sessions SET last_activity_at = ? WHERE session_id = ? AND is_active = 1`, now.UTC(), id)
	return err
}

func EndSession(ctx context.Context, q Querier, id string) error {
	res, err := q.ExecContext(ctx, `UPDATE sessions SET is_active = 0 WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return requireAffected(res)
}

func EndUserSessions(ctx context.Context, q Querier, userID string) (int64, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE sessions SET is_active = 0 WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return 0, fmt.Errorf("end user sessions: %w", err)
	}
	return res.RowsAffected()
}

func InsertPasswordReset(ctx context.Context, q Querier, token, userID string, expiresAt time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO password_resets (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}
	return nil
}

// ConsumePasswordReset marks an unexpired token used and returns its owner.
// A token can be consumed once.
func ConsumePasswordReset(ctx context.Context, q Querier, token string, now time.Time) (string, error) {
	var userID string
	err := q.QueryRowContext(ctx,
		`SELECT user_id FROM password_resets WHERE token = ? AND used = 0 AND expires_at > ?`,
		token, now.UTC()).Scan(&userID)
	if err != nil {
		return "", notFound(err)
	}
	res, err := q.ExecContext(ctx, `UPDATE password_resets SET used = 1 WHERE token = ? AND used = 0`, token)
	if err != nil {
		return "", fmt.Errorf("consume password reset: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return "", err
	}
	return userID, nil
}
