package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"taskquest/model"
	"taskquest/result"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "taskquest.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testNow = time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, id string) model.User {
	t.Helper()
	u := model.NewUser(id, id+"@example.com", "User "+id, testNow)
	require.NoError(t, InsertUser(context.Background(), s.DB(), u))
	return u
}

func seedTask(t *testing.T, s *Store, id, userID string, p model.Priority) model.Task {
	t.Helper()
	task := model.Task{
		ID:         id,
		UserID:     userID,
		Title:      "Tarea " + id,
		Priority:   p,
		Status:     model.StatusPending,
		Tags:       []string{},
		Recurrence: model.RecurrenceNone,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	require.NoError(t, InsertTask(context.Background(), s.DB(), task))
	return task
}

func TestTaskRowRoundTrip(t *testing.T) {
	due := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		task model.Task
	}{
		{
			name: "full",
			task: model.Task{
				ID: "t1", UserID: "u1", Title: "Comprar pan", Description: "integral",
				Priority: model.PriorityHigh, Status: model.StatusInProgress, Points: 75,
				Category: "casa", Tags: []string{"compras", "urgente"}, DueDate: &due,
				Recurrence: model.RecurrenceWeekly, CreatedAt: testNow, UpdatedAt: testNow,
			},
		},
		{
			name: "nil due date and empty tags",
			task: model.Task{
				ID: "t2", UserID: "u1", Title: "Leer", Priority: model.PriorityLow,
				Status: model.StatusPending, Tags: []string{}, Recurrence: model.RecurrenceNone,
				CreatedAt: testNow, UpdatedAt: testNow,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TaskFromRow(TaskToRow(tt.task))
			require.NoError(t, err)
			assert.Equal(t, tt.task, got)
		})
	}
}

func TestTaskPersistenceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	due := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	task := seedTask(t, s, "t1", "u1", model.PriorityMedium)
	task.Tags = []string{"a", "b"}
	task.DueDate = &due
	require.NoError(t, UpdateTask(ctx, s.DB(), task))

	got, err := GetTask(ctx, s.DB(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.Nil(t, got.CompletedAt)
	assert.True(t, testNow.Equal(got.CreatedAt))

	bare := seedTask(t, s, "t2", "u1", model.PriorityLow)
	got, err = GetTask(ctx, s.DB(), bare.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, []string{}, got.Tags)

	_, err = GetTask(ctx, s.DB(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteTaskRowIsGuarded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedTask(t, s, "t1", "u1", model.PriorityHigh)

	ok, err := CompleteTaskRow(ctx, s.DB(), "t1", testNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CompleteTaskRow(ctx, s.DB(), "t1", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := GetTask(ctx, s.DB(), "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, testNow.Equal(*got.CompletedAt))
}

func TestAddUserPointsRecomputesLevel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	require.NoError(t, AddUserPoints(ctx, s.DB(), "u1", 950, 950, 0))
	require.NoError(t, AddUserPoints(ctx, s.DB(), "u1", 230, 230, 1))

	u, err := GetUser(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1180, u.CurrentXP)
	assert.Equal(t, 1180, u.TotalPoints)
	assert.Equal(t, 2, u.Level)
	assert.Equal(t, 1, u.TasksCompleted)
}

func TestAddUserPointsNeverStoresLevelBelowOne(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	require.NoError(t, AddUserPoints(ctx, s.DB(), "u1", -5000, -5000, 0))
	u, err := GetUser(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Level)

	_, err = s.DB().Exec(`UPDATE user SET level = -4 WHERE id = ?`, "u1")
	require.NoError(t, err)
	repaired, err := RepairLevel(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.True(t, repaired)
	u, err = GetUser(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Level)
}

func TestLedgerOutlivesTasks(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedTask(t, s, "t1", "u1", model.PriorityHigh)

	require.NoError(t, InsertCompletion(ctx, s.DB(), Completion{ID: "c1", TaskID: "t1", UserID: "u1", Points: 200, XP: 200, CompletedAt: testNow}))
	// Bonus rows carry no task, so several of them fit the unique index.
	for _, id := range []string{"b1", "b2"} {
		require.NoError(t, InsertCompletion(ctx, s.DB(), Completion{ID: id, UserID: "u1", Kind: KindBonus, Points: 50, XP: 50, CompletedAt: testNow}))
	}

	require.NoError(t, DeleteTask(ctx, s.DB(), "t1"))
	done, err := HasCompletion(ctx, s.DB(), "t1")
	require.NoError(t, err)
	assert.True(t, done)

	stats, err := RecomputeStats(ctx, s.DB(), "u1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 300, stats.TotalPoints)
	assert.Equal(t, 200, stats.WeeklyPoints)
	assert.Equal(t, 200, stats.MonthlyPoints)
	assert.Equal(t, 1, stats.TasksCompletedToday)
	assert.Zero(t, stats.TotalTasks)

	none, err := HasCompletion(ctx, s.DB(), "t2")
	require.NoError(t, err)
	assert.False(t, none)
}

func TestStreakUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	for i := 0; i < 5; i++ {
		require.NoError(t, IncrementStreak(ctx, s.DB(), "u1"))
	}
	require.NoError(t, IncrementStreak(ctx, s.DB(), "u1"))
	u, err := GetUser(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 6, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)

	require.NoError(t, ResetStreak(ctx, s.DB(), "u1"))
	u, err = GetUser(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, u.CurrentStreak)
	assert.Equal(t, 6, u.LongestStreak)
}

func TestDeleteUserCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedTask(t, s, "t1", "u1", model.PriorityLow)
	require.NoError(t, InsertAttachment(ctx, s.DB(), model.Attachment{
		ID: "a1", TaskID: "t1", UserID: "u1", FileName: "f.png", Type: model.AttachmentImage,
		UploadStatus: model.UploadPending, CreatedAt: testNow,
	}))
	require.NoError(t, InsertAchievements(ctx, s.DB(), model.DefaultAchievements("u1", testNow)))
	_, err := RecomputeStats(ctx, s.DB(), "u1", testNow)
	require.NoError(t, err)

	require.NoError(t, DeleteUser(ctx, s.DB(), "u1"))

	for _, table := range []string{"tasks", "attachments", "achievements", "user_stats"} {
		var n int
		require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestRecomputeStatsFromLedger(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	for _, id := range []string{"t1", "t2", "t3", "t4"} {
		seedTask(t, s, id, "u1", model.PriorityMedium)
	}

	// t1 today, t2 earlier this week, t3 last month.
	completions := []Completion{
		{ID: "c1", TaskID: "t1", UserID: "u1", Points: 100, XP: 100, CompletedAt: testNow},
		{ID: "c2", TaskID: "t2", UserID: "u1", Points: 50, XP: 50, CompletedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)},
		{ID: "c3", TaskID: "t3", UserID: "u1", Points: 200, XP: 200, CompletedAt: time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC)},
	}
	for _, c := range completions {
		require.NoError(t, InsertCompletion(ctx, s.DB(), c))
		_, err := CompleteTaskRow(ctx, s.DB(), c.TaskID, c.CompletedAt)
		require.NoError(t, err)
	}

	stats, err := RecomputeStats(ctx, s.DB(), "u1", testNow)
	require.NoError(t, err)
	assert.Equal(t, 350, stats.TotalPoints)
	assert.Equal(t, 150, stats.WeeklyPoints)
	assert.Equal(t, 150, stats.MonthlyPoints)
	assert.Equal(t, 1, stats.TasksCompletedToday)
	assert.Equal(t, 2, stats.TasksCompletedThisWeek)
	assert.Equal(t, 2, stats.TasksCompletedThisMonth)
	assert.Equal(t, 4, stats.TotalTasks)
	assert.Equal(t, 3, stats.CompletedTasks)
	assert.InDelta(t, 0.75, stats.CompletionRate, 1e-9)

	stored, err := GetStats(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Equal(t, stats.TotalPoints, stored.TotalPoints)

	require.Error(t, InsertCompletion(ctx, s.DB(), Completion{ID: "c4", TaskID: "t1", UserID: "u1", CompletedAt: testNow}))
}

func TestLeaderboardRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "a")
	seedUser(t, s, "b")
	seedUser(t, s, "c")
	require.NoError(t, AddUserPoints(ctx, s.DB(), "a", 100, 100, 1))
	require.NoError(t, AddUserPoints(ctx, s.DB(), "b", 500, 500, 2))

	require.NoError(t, RefreshLeaderboard(ctx, s.DB(), testNow))

	top, err := TopRanks(ctx, s.DB(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].UserID)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "a", top[1].UserID)

	rank, err := GetRank(ctx, s.DB(), "c")
	require.NoError(t, err)
	assert.Equal(t, 3, rank.Rank)

	_, err = GetRank(ctx, s.DB(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPendingAttachments(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	seedTask(t, s, "t1", "u1", model.PriorityLow)
	for _, id := range []string{"a1", "a2", "a3"} {
		require.NoError(t, InsertAttachment(ctx, s.DB(), model.Attachment{
			ID: id, TaskID: "t1", UserID: "u1", FileName: id + ".pdf",
			Type: model.AttachmentDocument, UploadStatus: model.UploadPending, CreatedAt: testNow,
		}))
	}
	require.NoError(t, MarkAttachmentUploaded(ctx, s.DB(), "a1", "attachments/u1/t1/1_a1.pdf", testNow))
	require.NoError(t, MarkAttachmentFailed(ctx, s.DB(), "a2", "timeout"))

	pending, err := ListPendingAttachments(ctx, s.DB(), "u1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, model.UploadFailed, pending[0].UploadStatus)
	assert.Equal(t, "timeout", pending[0].UploadError)

	a1, err := GetAttachment(ctx, s.DB(), "a1")
	require.NoError(t, err)
	assert.True(t, a1.IsUploaded())
	require.NotNil(t, a1.UploadedAt)
}

func TestPasswordResetSingleUse(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")
	require.NoError(t, InsertPasswordReset(ctx, s.DB(), "tok", "u1", testNow.Add(time.Hour)))

	userID, err := ConsumePasswordReset(ctx, s.DB(), "tok", testNow)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)

	_, err = ConsumePasswordReset(ctx, s.DB(), "tok", testNow)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTxRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := AddUserPoints(ctx, tx, "u1", 100, 100, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	u, err := GetUser(ctx, s.DB(), "u1")
	require.NoError(t, err)
	assert.Zero(t, u.TotalPoints)
	assert.Zero(t, u.TasksCompleted)
}

func TestWatchDeliversChangesUntilCancel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seedUser(t, s, "u1")

	sub := Watch(ctx, s, "u1", []Table{TableTasks}, func(ctx context.Context) result.Result[[]model.Task] {
		tasks, err := ListTasks(ctx, s.DB(), "u1")
		return result.From(tasks, err, "No se pudieron cargar las tareas")
	})

	first := <-sub.C
	assert.True(t, first.IsLoading())
	initial := <-sub.C
	tasks, ok := initial.Value()
	require.True(t, ok)
	assert.Empty(t, tasks)

	seedTask(t, s, "t1", "u1", model.PriorityHigh)
	s.Notify("u1", TableTasks)

	select {
	case next := <-sub.C:
		tasks, ok := next.Value()
		require.True(t, ok)
		assert.Len(t, tasks, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("no emission after change")
	}

	// Changes for another user or table do not wake the subscriber.
	s.Notify("u2", TableTasks)
	s.Notify("u1", TableLeaderboard)
	select {
	case r := <-sub.C:
		t.Fatalf("unexpected emission %v", r)
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, 1, s.Watchers())
	sub.Cancel()
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, s.Watchers())
}
