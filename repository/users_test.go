package repository

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"taskquest/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreaks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")

	for i := 0; i < 5; i++ {
		require.True(t, env.repos.Users.IncrementStreak(ctx, u.ID).IsSuccess())
	}
	got, _ := env.repos.Users.GetUser(ctx, u.ID).Value()
	require.Equal(t, 5, got.CurrentStreak)
	require.Equal(t, 5, got.LongestStreak)

	got, ok := env.repos.Users.IncrementStreak(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Equal(t, 6, got.CurrentStreak)
	assert.Equal(t, 6, got.LongestStreak)

	got, ok = env.repos.Users.ResetStreak(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Equal(t, 0, got.CurrentStreak)
	assert.Equal(t, 6, got.LongestStreak)

	got, _ = env.repos.Users.IncrementStreak(ctx, u.ID).Value()
	assert.Equal(t, 1, got.CurrentStreak)
	assert.Equal(t, 6, got.LongestStreak)
}

func TestStreakUnlocksAchievement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")

	for i := 0; i < 7; i++ {
		require.True(t, env.repos.Users.IncrementStreak(ctx, u.ID).IsSuccess())
	}

	list, ok := env.repos.Achievements.GetAchievements(ctx, u.ID).Value()
	require.True(t, ok)
	for _, a := range list {
		if a.Title == "Constancia" {
			assert.True(t, a.Unlocked)
			assert.Equal(t, 100.0, a.ProgressPercentage())
			return
		}
	}
	t.Fatal("streak achievement missing")
}

func TestStreakOnMissingUser(t *testing.T) {
	env := newTestEnv(t)
	res := env.repos.Users.IncrementStreak(context.Background(), "nobody")
	require.True(t, res.IsError())
	assert.Equal(t, MsgUserNotFound, res.Message())
}

func TestGetUserRepairsDriftedLevel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")
	require.True(t, env.repos.Users.AddPoints(ctx, u.ID, 2500).IsSuccess())

	_, err := env.store.DB().Exec(`UPDATE user SET level = 9 WHERE id = ?`, u.ID)
	require.NoError(t, err)

	got, ok := env.repos.Users.GetUser(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Equal(t, 3, got.Level)
	assert.Equal(t, 3, env.count(t, `SELECT level FROM user WHERE id = ?`, u.ID))
}

func TestAddPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")

	award, ok := env.repos.Users.AddPoints(ctx, u.ID, 1000).Value()
	require.True(t, ok)
	assert.Equal(t, 1000, award.Points)
	assert.Equal(t, 2, award.NewLevel)
	assert.True(t, award.LeveledUp())

	got, _ := env.repos.Users.GetUser(ctx, u.ID).Value()
	assert.Equal(t, 1000, got.TotalPoints)
	assert.Zero(t, got.TasksCompleted)
	assert.Equal(t, 1000, env.board.scores[u.ID])

	stats, ok := env.repos.Stats.GetStats(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Equal(t, got.TotalPoints, stats.TotalPoints)
	assert.Zero(t, stats.WeeklyPoints)
	assert.Zero(t, stats.MonthlyPoints)
	assert.Zero(t, stats.TasksCompletedToday)

	// A recompute from the ledger agrees with the user record.
	stats, ok = env.repos.Stats.RecalculateStats(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Equal(t, got.TotalPoints, stats.TotalPoints)
}

func TestAddPointsRejectsNonPositive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")

	for _, pts := range []int{0, -5000} {
		res := env.repos.Users.AddPoints(ctx, u.ID, pts)
		require.True(t, res.IsError())
		assert.ErrorIs(t, res.Err(), ErrValidation)
		assert.Equal(t, MsgInvalidPoints, res.Message())
	}

	got, ok := env.repos.Users.GetUser(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Zero(t, got.CurrentXP)
	assert.Zero(t, got.TotalPoints)
	assert.Equal(t, 1, got.Level)
	assert.Zero(t, env.count(t, `SELECT COUNT(*) FROM task_completions WHERE user_id = ?`, u.ID))
}

func TestGetUserRepairsLevelBelowOne(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")

	_, err := env.store.DB().Exec(`UPDATE user SET current_xp = -5000, level = -4 WHERE id = ?`, u.ID)
	require.NoError(t, err)

	got, ok := env.repos.Users.GetUser(ctx, u.ID).Value()
	require.True(t, ok)
	assert.Equal(t, 1, got.Level)
	assert.Equal(t, 1, env.count(t, `SELECT level FROM user WHERE id = ?`, u.ID))
}

func TestUpdateProfileAndAvatar(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.signUp(t, "ana@example.com")

	got, ok := env.repos.Users.UpdateProfile(ctx, u.ID, "Ana María", "").Value()
	require.True(t, ok)
	assert.Equal(t, "Ana María", got.DisplayName)

	got, ok = env.repos.Users.UploadAvatar(ctx, u.ID, "cara.png", "image/png", strings.NewReader("png")).Value()
	require.True(t, ok)
	assert.Equal(t, "avatars/"+u.ID+"/cara.png", got.AvatarURL)
	assert.Equal(t, "Ana María", got.DisplayName)

	var buf bytes.Buffer
	n, ok := env.repos.Users.DownloadAvatar(ctx, u.ID, &buf).Value()
	require.True(t, ok)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, "png", buf.String())
}

func TestWatchUserSeesPoints(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	u := env.signUp(t, "ana@example.com")

	sub := env.repos.Users.WatchUser(ctx, u.ID)
	assert.True(t, (<-sub.C).IsLoading())
	first, _ := (<-sub.C).Value()
	assert.Zero(t, first.TotalPoints)

	task := env.createTask(t, u.ID, model.PriorityLow)
	require.True(t, env.repos.Tasks.CompleteTask(ctx, task.ID).IsSuccess())

	select {
	case r := <-sub.C:
		got, ok := r.Value()
		require.True(t, ok)
		assert.Equal(t, 50, got.TotalPoints)
	case <-time.After(2 * time.Second):
		t.Fatal("no emission after completion")
	}

	cancel()
	for range sub.C {
	}
	assert.Zero(t, env.store.Watchers())
}
