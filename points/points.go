// Package points maps task priority and streak length to points, and
// points to experience and levels. Everything here is pure arithmetic.
package points

import "strings"

const (
	// XPPerLevel is the width of every level band.
	XPPerLevel = 1000

	// StreakBonusPerDay is added once per consecutive day. Uncapped.
	StreakBonusPerDay = 10

	PointsLow    = 50
	PointsMedium = 100
	PointsHigh   = 200
)

// PointsForPriority returns the base value of a task priority. Accepts the
// symbolic names (LOW/MEDIUM/HIGH) and the Spanish labels (baja/media/alta),
// case-insensitively. Anything else counts as medium.
func PointsForPriority(priority string) int {
	switch strings.ToLower(strings.TrimSpace(priority)) {
	case "high", "alta":
		return PointsHigh
	case "low", "baja":
		return PointsLow
	default:
		return PointsMedium
	}
}

func StreakBonus(streakDays int) int {
	return streakDays * StreakBonusPerDay
}

func TotalPoints(basePoints, streakDays int) int {
	return basePoints + StreakBonus(streakDays)
}

// LevelFromXP is floor(xp/1000)+1. Levels start at 1; negative XP is not
// rejected but never yields a level below 1.
func LevelFromXP(xp int) int {
	if xp < 0 {
		return 1
	}
	return xp/XPPerLevel + 1
}

// XPRequiredForLevel is the cumulative XP at which the level above level
// begins.
func XPRequiredForLevel(level int) int {
	return level * XPPerLevel
}

// CurrentLevelXP is the progress inside the current band, always in [0, 999].
func CurrentLevelXP(totalXP int) int {
	m := totalXP % XPPerLevel
	if m < 0 {
		m += XPPerLevel
	}
	return m
}

func LevelProgressFraction(totalXP int) float64 {
	return float64(CurrentLevelXP(totalXP)) / XPPerLevel
}

// PointsToXP is the identity: one point is one XP.
func PointsToXP(points int) int {
	return points
}

// Award is the outcome of crediting one completed task.
type Award struct {
	BasePoints    int `json:"base_points"`
	StreakBonus   int `json:"streak_bonus"`
	Points        int `json:"points"`
	XP            int `json:"xp"`
	PreviousXP    int `json:"previous_xp"`
	NewXP         int `json:"new_xp"`
	PreviousLevel int `json:"previous_level"`
	NewLevel      int `json:"new_level"`
	LevelXP       int `json:"level_xp"`
}

func (a Award) LeveledUp() bool {
	return a.NewLevel > a.PreviousLevel
}

// Calculate runs the whole chain for one completion: base points plus the
// streak bonus, converted to XP and added to currentXP.
func Calculate(basePoints, streakDays, currentXP int) Award {
	total := TotalPoints(basePoints, streakDays)
	xp := PointsToXP(total)
	newXP := currentXP + xp
	return Award{
		BasePoints:    basePoints,
		StreakBonus:   StreakBonus(streakDays),
		Points:        total,
		XP:            xp,
		PreviousXP:    currentXP,
		NewXP:         newXP,
		PreviousLevel: LevelFromXP(currentXP),
		NewLevel:      LevelFromXP(newXP),
		LevelXP:       CurrentLevelXP(newXP),
	}
}
