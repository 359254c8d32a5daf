package model

import (
	"time"

	"taskquest/points"
)

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	DisplayName      string     `json:"display_name"`
	AvatarURL        string     `json:"avatar_url"`
	PasswordHash     string     `json:"-"`
	TwoFactorSecret  string     `json:"-"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	CurrentXP        int        `json:"current_xp"`
	Level            int        `json:"level"`
	TotalPoints      int        `json:"total_points"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	TasksCompleted   int        `json:"tasks_completed"`
	CreatedAt        time.Time  `json:"created_at"`
	LastActiveAt     *time.Time `json:"last_active_at,omitempty"`
}

// NewUser returns a freshly signed-up user at level 1 with no XP.
func NewUser(id, email, displayName string, now time.Time) User {
	return User{
		ID:          id,
		Email:       email,
		DisplayName: displayName,
		Level:       1,
		CreatedAt:   now,
	}
}

func (u User) DerivedLevel() int {
	return points.LevelFromXP(u.CurrentXP)
}

func (u User) CurrentLevelXP() int {
	return points.CurrentLevelXP(u.CurrentXP)
}

func (u User) LevelProgress() float64 {
	return points.LevelProgressFraction(u.CurrentXP)
}

func (u User) XPToNextLevel() int {
	return points.XPRequiredForLevel(u.DerivedLevel()) - u.CurrentXP
}

// WithStreakIncremented advances the current streak and carries the longest
// streak along when it is overtaken.
func (u User) WithStreakIncremented() User {
	u.CurrentStreak++
	if u.CurrentStreak > u.LongestStreak {
		u.LongestStreak = u.CurrentStreak
	}
	return u
}

// WithStreakReset zeroes the current streak and keeps the high-water mark.
func (u User) WithStreakReset() User {
	u.CurrentStreak = 0
	return u
}

// WithPoints credits points, converts them to XP and re-derives the level.
func (u User) WithPoints(p int) User {
	u.TotalPoints += p
	u.CurrentXP += points.PointsToXP(p)
	u.Level = points.LevelFromXP(u.CurrentXP)
	return u
}
