package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskDerivedGetters(t *testing.T) {
	due := time.Date(2026, time.January, 15, 9, 0, 0, 0, time.UTC)
	task := Task{Priority: PriorityHigh, Status: StatusPending, DueDate: &due}

	assert.Equal(t, "#F44336", task.PriorityColor())
	assert.Equal(t, "15 ene 2026", task.FormattedDueDate())
	assert.Equal(t, 200, task.EffectivePoints())
	assert.True(t, task.IsOverdue(due.Add(time.Hour)))
	assert.False(t, task.IsOverdue(due.Add(-time.Hour)))

	task.Points = 75
	assert.Equal(t, 75, task.EffectivePoints())

	task.Status = StatusCompleted
	assert.True(t, task.IsCompleted())
	assert.False(t, task.IsOverdue(due.Add(time.Hour)))

	assert.Equal(t, "Sin fecha", Task{}.FormattedDueDate())
	assert.Equal(t, 100, Task{}.EffectivePoints())
}

func TestParsePriority(t *testing.T) {
	p, ok := ParsePriority("alta")
	require.True(t, ok)
	assert.Equal(t, PriorityHigh, p)

	p, ok = ParsePriority("LOW")
	require.True(t, ok)
	assert.Equal(t, PriorityLow, p)

	_, ok = ParsePriority("urgente")
	assert.False(t, ok)
	assert.Equal(t, "Media", PriorityMedium.Label())
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusInProgress))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.True(t, StatusInProgress.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusOverdue.CanTransitionTo(StatusCompleted))
	assert.False(t, StatusInProgress.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCompleted.CanTransitionTo(StatusPending))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusCompleted))
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusOverdue.IsTerminal())
}

func TestUserStreaks(t *testing.T) {
	u := User{CurrentStreak: 5, LongestStreak: 5}

	u = u.WithStreakIncremented()
	assert.Equal(t, 6, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)

	u = u.WithStreakReset()
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)

	u = u.WithStreakIncremented()
	assert.Equal(t, 1, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)
}

func TestUserLevelHelpers(t *testing.T) {
	u := NewUser("u1", "ana@example.com", "Ana", time.Now())
	assert.Equal(t, 1, u.Level)
	assert.Equal(t, 0, u.CurrentXP)

	u = u.WithPoints(1180)
	assert.Equal(t, 2, u.Level)
	assert.Equal(t, 180, u.CurrentLevelXP())
	assert.Equal(t, 820, u.XPToNextLevel())
	assert.InDelta(t, 0.18, u.LevelProgress(), 1e-9)
}

func TestAchievementProgress(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := Achievement{Type: AchievementTasksCompleted, Target: 10}

	a, changed := a.Advance(User{TasksCompleted: 5}, now)
	assert.True(t, changed)
	assert.Equal(t, 50.0, a.ProgressPercentage())
	assert.False(t, a.Unlocked)

	a, changed = a.Advance(User{TasksCompleted: 12}, now)
	assert.True(t, changed)
	assert.True(t, a.Unlocked)
	require.NotNil(t, a.UnlockedAt)
	assert.Equal(t, 100.0, a.ProgressPercentage())

	_, changed = a.Advance(User{TasksCompleted: 13}, now)
	assert.False(t, changed)

	assert.Equal(t, 0.0, Achievement{Target: 0}.ProgressPercentage())
}

func TestDefaultAchievements(t *testing.T) {
	list := DefaultAchievements("u1", time.Now())
	require.NotEmpty(t, list)
	seen := map[string]bool{}
	for _, a := range list {
		assert.Equal(t, "u1", a.UserID)
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
		assert.Positive(t, a.Target)
	}
}

func TestAttachmentHelpers(t *testing.T) {
	assert.Equal(t, AttachmentImage, AttachmentTypeFromMIME("image/png"))
	assert.Equal(t, AttachmentDocument, AttachmentTypeFromMIME("application/pdf"))
	assert.Equal(t, AttachmentAudio, AttachmentTypeFromMIME("audio/mpeg"))
	assert.Equal(t, AttachmentOther, AttachmentTypeFromMIME("application/zip"))

	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1,5 KB", FormatSize(1536))
	assert.Equal(t, "2,0 MB", FormatSize(2*1024*1024))
	assert.True(t, Attachment{Type: AttachmentImage}.IsImage())
}

func TestStatsHelpers(t *testing.T) {
	assert.Equal(t, 0.0, CompletionRate(0, 0))
	assert.Equal(t, 0.25, CompletionRate(1, 4))
	assert.Equal(t, 67, UserStats{CompletionRate: 2.0 / 3.0}.CompletionPercentage())

	// 2026-03-05 is a Thursday.
	day, week, month := PeriodStarts(time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), week)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), month)

	_, week, _ = PeriodStarts(time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), week)
}

func TestBlobPaths(t *testing.T) {
	at := time.UnixMilli(1767225600123).UTC()
	a := Attachment{UserID: "u1", TaskID: "t1", FileName: "foto.jpg", CreatedAt: at}
	assert.Equal(t, "attachments/u1/t1/1767225600123_foto.jpg", a.BlobPath())
	assert.Equal(t, "avatars/u1/yo.png", AvatarPath("u1", "yo.png"))
}
