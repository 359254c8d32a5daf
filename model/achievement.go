package model

import (
	"time"

	"github.com/google/uuid"
)

type AchievementType string

const (
	AchievementTasksCompleted AchievementType = "TASKS_COMPLETED"
	AchievementStreak         AchievementType = "STREAK"
	AchievementLevel          AchievementType = "LEVEL"
	AchievementPoints         AchievementType = "POINTS"
)

// ProgressFor reads the user counter this achievement type tracks.
func (t AchievementType) ProgressFor(u User) int {
	switch t {
	case AchievementTasksCompleted:
		return u.TasksCompleted
	case AchievementStreak:
		return u.LongestStreak
	case AchievementLevel:
		return u.DerivedLevel()
	case AchievementPoints:
		return u.TotalPoints
	default:
		return 0
	}
}

type Achievement struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Type         AchievementType `json:"type"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Target       int             `json:"target"`
	Progress     int             `json:"progress"`
	PointsReward int             `json:"points_reward"`
	Unlocked     bool            `json:"unlocked"`
	UnlockedAt   *time.Time      `json:"unlocked_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ProgressPercentage is clamped to [0, 100].
func (a Achievement) ProgressPercentage() float64 {
	if a.Unlocked {
		return 100
	}
	if a.Target <= 0 || a.Progress <= 0 {
		return 0
	}
	pct := float64(a.Progress) / float64(a.Target) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Advance recomputes progress from the user and unlocks the achievement when
// the target is reached. changed reports whether anything moved.
func (a Achievement) Advance(u User, now time.Time) (next Achievement, changed bool) {
	if a.Unlocked {
		return a, false
	}
	progress := a.Type.ProgressFor(u)
	if progress == a.Progress {
		return a, false
	}
	a.Progress = progress
	if a.Progress >= a.Target {
		a.Unlocked = true
		at := now
		a.UnlockedAt = &at
	}
	return a, true
}

type achievementTemplate struct {
	kind        AchievementType
	title       string
	description string
	target      int
	reward      int
}

var defaultAchievements = []achievementTemplate{
	{AchievementTasksCompleted, "Primera tarea", "Completa tu primera tarea", 1, 10},
	{AchievementTasksCompleted, "Productivo", "Completa 10 tareas", 10, 50},
	{AchievementTasksCompleted, "Imparable", "Completa 100 tareas", 100, 500},
	{AchievementStreak, "Constancia", "Mantén una racha de 7 días", 7, 70},
	{AchievementStreak, "Hábito de hierro", "Mantén una racha de 30 días", 30, 300},
	{AchievementLevel, "Aprendiz", "Alcanza el nivel 5", 5, 100},
	{AchievementLevel, "Veterano", "Alcanza el nivel 10", 10, 250},
	{AchievementPoints, "Mil puntos", "Acumula 1000 puntos", 1000, 100},
}

// DefaultAchievements is the set every new account starts with.
func DefaultAchievements(userID string, now time.Time) []Achievement {
	out := make([]Achievement, 0, len(defaultAchievements))
	for _, tpl := range defaultAchievements {
		out = append(out, Achievement{
			ID:           uuid.NewString(),
			UserID:       userID,
			Type:         tpl.kind,
			Title:        tpl.title,
			Description:  tpl.description,
			Target:       tpl.target,
			PointsReward: tpl.reward,
			CreatedAt:    now,
		})
	}
	return out
}
