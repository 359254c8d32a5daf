package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"taskquest/model"
	"taskquest/repository"
	"taskquest/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*TaskService, *repository.Repositories, string) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "taskquest.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := func() time.Time { return now }
	repos := repository.New(store, repository.Options{
		AttachmentDir: t.TempDir(),
		Clock:         clock,
	})
	res := repos.Auth.SignUp(context.Background(), repository.SignUpInput{
		Email: "ana@example.com", Password: "secreto1!", DisplayName: "Ana",
	})
	u, ok := res.Value()
	require.True(t, ok, res.String())
	return NewTaskService(repos.Tasks, clock), repos, u.ID
}

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func mustCreate(t *testing.T, svc *TaskService, userID string, task model.Task) model.Task {
	t.Helper()
	res := svc.CreateTask(context.Background(), userID, task)
	created, ok := res.Value()
	require.True(t, ok, res.String())
	return created
}

func titles(list []model.Task) []string {
	out := make([]string, 0, len(list))
	for _, t := range list {
		out = append(out, t.Title)
	}
	return out
}

func TestCreateTaskValidation(t *testing.T) {
	svc, _, userID := newService(t)
	long := make([]byte, maxTitleLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		task    model.Task
		wantMsg string
	}{
		{"missing title", model.Task{Title: "   "}, MsgTitleRequired},
		{"title too long", model.Task{Title: string(long)}, MsgTitleTooLong},
		{"unknown priority", model.Task{Title: "x", Priority: "URGENTE"}, MsgInvalidPriority},
		{"negative points", model.Task{Title: "x", Points: -5}, MsgNegativePoints},
		{"too many tags", model.Task{Title: "x", Tags: []string{"a", "b", "c", "d", "e", "f"}}, MsgTooManyTags},
		{"tag too long", model.Task{Title: "x", Tags: []string{"una etiqueta demasiado larga"}}, MsgTagTooLong},
		{"due date in the past", model.Task{Title: "x", DueDate: at(-time.Hour)}, MsgDueDateInPast},
		{"recurring without due date", model.Task{Title: "x", Recurrence: model.RecurrenceWeekly}, MsgRecurrenceNeedsDue},
		{"unknown recurrence", model.Task{Title: "x", Recurrence: "YEARLY"}, MsgInvalidRecurrence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := svc.CreateTask(context.Background(), userID, tt.task)
			require.True(t, res.IsError())
			assert.Equal(t, tt.wantMsg, res.Message())
			assert.ErrorIs(t, res.Err(), repository.ErrValidation)
		})
	}
}

func TestCreateTaskNormalizes(t *testing.T) {
	svc, _, userID := newService(t)

	task := mustCreate(t, svc, userID, model.Task{
		ID:       "client-chosen",
		Title:    "  Comprar pan ",
		Priority: "alta",
		Status:   model.StatusCompleted,
		Tags:     []string{" casa ", "", "Casa", "compras"},
	})
	assert.NotEqual(t, "client-chosen", task.ID)
	assert.Equal(t, "Comprar pan", task.Title)
	assert.Equal(t, model.PriorityHigh, task.Priority)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, []string{"casa", "compras"}, task.Tags)
	assert.Equal(t, userID, task.UserID)
}

func TestOwnership(t *testing.T) {
	svc, repos, userID := newService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, userID, model.Task{Title: "Mía"})

	other, ok := repos.Auth.SignUp(ctx, repository.SignUpInput{
		Email: "bea@example.com", Password: "secreto1!", DisplayName: "Bea",
	}).Value()
	require.True(t, ok)

	title := "robada"
	checks := map[string]error{
		"get":      svc.GetTask(ctx, other.ID, task.ID).Err(),
		"update":   svc.UpdateTask(ctx, other.ID, task.ID, TaskPatch{Title: &title}).Err(),
		"complete": svc.CompleteTask(ctx, other.ID, task.ID).Err(),
		"status":   svc.UpdateStatus(ctx, other.ID, task.ID, model.StatusInProgress).Err(),
		"delete":   svc.DeleteTask(ctx, other.ID, task.ID).Err(),
	}
	for name, err := range checks {
		assert.ErrorIs(t, err, repository.ErrNotFound, name)
	}

	got, ok := svc.GetTask(ctx, userID, task.ID).Value()
	require.True(t, ok)
	assert.Equal(t, "Mía", got.Title)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestUpdateTask(t *testing.T) {
	svc, _, userID := newService(t)
	ctx := context.Background()
	task := mustCreate(t, svc, userID, model.Task{Title: "Informe", DueDate: at(48 * time.Hour)})

	title := "Informe trimestral"
	prio := model.Priority("baja")
	got, ok := svc.UpdateTask(ctx, userID, task.ID, TaskPatch{
		Title:    &title,
		Priority: &prio,
		Tags:     []string{"trabajo"},
	}).Value()
	require.True(t, ok)
	assert.Equal(t, title, got.Title)
	assert.Equal(t, model.PriorityLow, got.Priority)
	assert.Equal(t, []string{"trabajo"}, got.Tags)
	require.NotNil(t, got.DueDate, "untouched fields survive")

	got, ok = svc.UpdateTask(ctx, userID, task.ID, TaskPatch{ClearDueDate: true}).Value()
	require.True(t, ok)
	assert.Nil(t, got.DueDate)

	past := now.Add(-time.Hour)
	res := svc.UpdateTask(ctx, userID, task.ID, TaskPatch{DueDate: &past})
	assert.Equal(t, MsgDueDateInPast, res.Message())

	require.True(t, svc.CompleteTask(ctx, userID, task.ID).IsSuccess())
	res = svc.UpdateTask(ctx, userID, task.ID, TaskPatch{Title: &title})
	assert.ErrorIs(t, res.Err(), repository.ErrInvalidTransition)
}

func TestUpdateStatusAcceptsLowercase(t *testing.T) {
	svc, _, userID := newService(t)
	task := mustCreate(t, svc, userID, model.Task{Title: "x"})

	got, ok := svc.UpdateStatus(context.Background(), userID, task.ID, "in_progress").Value()
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, got.Status)
}

func TestListTasksSortAndFilter(t *testing.T) {
	svc, repos, userID := newService(t)
	ctx := context.Background()

	mustCreate(t, svc, userID, model.Task{Title: "baja sin fecha", Priority: model.PriorityLow})
	mustCreate(t, svc, userID, model.Task{Title: "alta mañana", Priority: model.PriorityHigh, DueDate: at(24 * time.Hour), Tags: []string{"Trabajo"}})
	mustCreate(t, svc, userID, model.Task{Title: "alta hoy", Priority: model.PriorityHigh, DueDate: at(2 * time.Hour)})
	done := mustCreate(t, svc, userID, model.Task{Title: "hecha", Priority: model.PriorityHigh})
	require.True(t, svc.CompleteTask(ctx, userID, done.ID).IsSuccess())

	// Inserted directly: the service refuses past due dates.
	late := model.Task{UserID: userID, Title: "media atrasada", Priority: model.PriorityMedium, DueDate: at(-24 * time.Hour)}
	require.True(t, repos.Tasks.CreateTask(ctx, late).IsSuccess())

	all, ok := svc.ListTasks(ctx, userID, TaskFilter{}).Value()
	require.True(t, ok)
	assert.Equal(t, []string{"media atrasada", "alta hoy", "alta mañana", "baja sin fecha", "hecha"}, titles(all))

	high, _ := svc.ListTasks(ctx, userID, TaskFilter{Priority: model.PriorityHigh}).Value()
	assert.Equal(t, []string{"alta hoy", "alta mañana", "hecha"}, titles(high))

	tagged, _ := svc.ListTasks(ctx, userID, TaskFilter{Tag: "trabajo"}).Value()
	assert.Equal(t, []string{"alta mañana"}, titles(tagged))

	completed, _ := svc.ListTasks(ctx, userID, TaskFilter{Status: model.StatusCompleted}).Value()
	assert.Equal(t, []string{"hecha"}, titles(completed))

	overdue, _ := svc.Overdue(ctx, userID).Value()
	assert.Equal(t, []string{"media atrasada"}, titles(overdue))

	upcoming, _ := svc.Upcoming(ctx, userID, 1).Value()
	assert.Equal(t, []string{"alta hoy", "alta mañana"}, titles(upcoming))
	assert.Equal(t, MsgInvalidDays, svc.Upcoming(ctx, userID, 0).Message())

	tags, _ := svc.Tags(ctx, userID).Value()
	assert.Equal(t, []string{"Trabajo"}, tags)

	summary, ok := svc.Summary(ctx, userID).Value()
	require.True(t, ok)
	assert.Equal(t, model.TaskStats{
		Total: 5, Completed: 1, Pending: 4,
		HighPriority: 3, MediumPriority: 1, LowPriority: 1,
		Overdue: 1, DueToday: 1, Upcoming: 1,
	}, summary)

	n, ok := svc.MarkOverdue(ctx, userID).Value()
	require.True(t, ok)
	assert.Equal(t, 1, n)
}

func TestSearchIgnoresAccentsAndCase(t *testing.T) {
	svc, _, userID := newService(t)
	ctx := context.Background()
	mustCreate(t, svc, userID, model.Task{Title: "Ensayar la Canción", Description: "con la guitarra"})
	mustCreate(t, svc, userID, model.Task{Title: "Llamar a mamá"})
	mustCreate(t, svc, userID, model.Task{Title: "Pagar", Description: "Facturación de marzo"})

	tests := []struct {
		query string
		want  []string
	}{
		{"cancion", []string{"Ensayar la Canción"}},
		{"MAMA", []string{"Llamar a mamá"}},
		{"facturacion", []string{"Pagar"}},
		{"GUITARRA", []string{"Ensayar la Canción"}},
		{"nada", []string{}},
		{"  ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := svc.SearchTasks(ctx, userID, tt.query).Value()
			require.True(t, ok)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, "accion rapida", fold("Acción RÁPIDA"))
	assert.Equal(t, "nino", fold("Niño"))
	assert.Equal(t, "", fold(""))
}
