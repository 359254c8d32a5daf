package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taskquest/model"
)

// Ledger entry kinds.
const (
	KindTask  = "task"
	KindBonus = "bonus"
)

// Completion is one row of the points ledger. TaskID is empty for bonus
// credits.
type Completion struct {
	ID          string
	TaskID      string
	UserID      string
	Kind        string
	Points      int
	XP          int
	CompletedAt time.Time
}

func InsertCompletion(ctx context.Context, q Querier, c Completion) error {
	kind := c.Kind
	if kind == "" {
		kind = KindTask
	}
	taskID := sql.NullString{String: c.TaskID, Valid: c.TaskID != ""}
	_, err := q.ExecContext(ctx,
		`INSERT INTO task_completions (id, task_id, user_id, kind, points, xp, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, taskID, c.UserID, kind, c.Points, c.XP, c.CompletedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert completion: %w", err)
	}
	return nil
}

// HasCompletion reports whether the ledger already credited taskID.
func HasCompletion(ctx context.Context, q Querier, taskID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_completions WHERE task_id = ?`, taskID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check completion: %w", err)
	}
	return n > 0, nil
}

// RecomputeStats rebuilds the user_stats row from the points ledger and the
// tasks table, relative to now, and stores it. The total covers every ledger
// row; period buckets and counters only count task completions.
func RecomputeStats(ctx context.Context, q Querier, userID string, now time.Time) (model.UserStats, error) {
	day, week, month := model.PeriodStarts(now)
	s := model.UserStats{UserID: userID, UpdatedAt: now.UTC()}

	err := q.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(points), 0),
			COALESCE(SUM(CASE WHEN kind = ? AND completed_at >= ? THEN points ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? AND completed_at >= ? THEN points ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? AND completed_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? AND completed_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? AND completed_at >= ? THEN 1 ELSE 0 END), 0)
		FROM task_completions WHERE user_id = ?`,
		KindTask, week, KindTask, month, KindTask, day, KindTask, week, KindTask, month, userID,
	).Scan(&s.TotalPoints, &s.WeeklyPoints, &s.MonthlyPoints,
		&s.TasksCompletedToday, &s.TasksCompletedThisWeek, &s.TasksCompletedThisMonth)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("sum completions: %w", err)
	}

	err = q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE user_id = ?`,
		string(model.StatusCompleted), userID,
	).Scan(&s.TotalTasks, &s.CompletedTasks)
	if err != nil {
		return model.UserStats{}, fmt.Errorf("count tasks: %w", err)
	}
	s.CompletionRate = model.CompletionRate(s.CompletedTasks, s.TotalTasks)

	if err := SaveStats(ctx, q, s); err != nil {
		return model.UserStats{}, err
	}
	return s, nil
}

func SaveStats(ctx context.Context, q Querier, s model.UserStats) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO user_stats (user_id, total_points, weekly_points, monthly_points,
			tasks_completed_today, tasks_completed_this_week, tasks_completed_this_month,
			total_tasks, completed_tasks, completion_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_points = excluded.total_points,
			weekly_points = excluded.weekly_points,
			monthly_points = excluded.monthly_points,
			tasks_completed_today = excluded.tasks_completed_today,
			tasks_completed_this_week = excluded.tasks_completed_this_week,
			tasks_completed_this_month = excluded.tasks_completed_this_month,
			total_tasks = excluded.total_tasks,
			completed_tasks = excluded.completed_tasks,
			completion_rate = excluded.completion_rate,
			updated_at = excluded.updated_at`,
		s.UserID, s.TotalPoints, s.WeeklyPoints, s.MonthlyPoints,
		s.TasksCompletedToday, s.TasksCompletedThisWeek, s.TasksCompletedThisMonth,
		s.TotalTasks, s.CompletedTasks, s.CompletionRate, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func GetStats(ctx context.Context, q Querier, userID string) (model.UserStats, error) {
	var s model.UserStats
	err := q.QueryRowContext(ctx,
		`SELECT user_id, total_points, weekly_points, monthly_points, tasks_completed_today,
			tasks_completed_this_week, tasks_completed_this_month, total_tasks, completed_tasks,
			completion_rate, updated_at
		FROM user_stats WHERE user_id = ?`, userID,
	).Scan(&s.UserID, &s.TotalPoints, &s.WeeklyPoints, &s.MonthlyPoints, &s.TasksCompletedToday,
		&s.TasksCompletedThisWeek, &s.TasksCompletedThisMonth, &s.TotalTasks, &s.CompletedTasks,
		&s.CompletionRate, &s.UpdatedAt)
	if err != nil {
		return model.UserStats{}, notFound(err)
	}
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
