package model

import "time"

// UserStats is the denormalised rollup shown on the profile screen. It is
// always recomputed from the completion ledger, never incremented in place.
type UserStats struct {
	UserID                  string    `json:"user_id"`
	TotalPoints             int       `json:"total_points"`
	WeeklyPoints            int       `json:"weekly_points"`
	MonthlyPoints           int       `json:"monthly_points"`
	TasksCompletedToday     int       `json:"tasks_completed_today"`
	TasksCompletedThisWeek  int       `json:"tasks_completed_this_week"`
	TasksCompletedThisMonth int       `json:"tasks_completed_this_month"`
	TotalTasks              int       `json:"total_tasks"`
	CompletedTasks          int       `json:"completed_tasks"`
	CompletionRate          float64   `json:"completion_rate"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (s UserStats) CompletionPercentage() int {
	return int(s.CompletionRate*100 + 0.5)
}

// CompletionRate returns completed/total, 0 for an empty list.
func CompletionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total)
}

// PeriodStarts returns the UTC start of the day, ISO week (Monday) and month
// containing now.
func PeriodStarts(now time.Time) (day, week, month time.Time) {
	now = now.UTC()
	day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	week = day.AddDate(0, 0, -offset)
	month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return day, week, month
}

// UserRank is one leaderboard row.
type UserRank struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"user_id"`
	DisplayName   string `json:"display_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	Level         int    `json:"level"`
	TotalPoints   int    `json:"total_points"`
	WeeklyPoints  int    `json:"weekly_points"`
	CurrentStreak int    `json:"current_streak"`
}
