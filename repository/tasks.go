package repository

import (
	"context"
	"database/sql"
	"fmt"

	"taskquest/model"
	"taskquest/points"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"

	"github.com/google/uuid"
)

type TaskRepository struct {
	base
	blob        BlobStore
	leaderboard *LeaderboardRepository

	// beforeCommit runs last inside the completion transaction. Tests use it
	// to force a rollback.
	beforeCommit func(ctx context.Context, tx *sql.Tx) error
}

// Completion is the outcome of CompleteTask. Awarded is false when the task
// was already terminal and nothing was credited.
type Completion struct {
	Task     model.Task          `json:"task"`
	Awarded  bool                `json:"awarded"`
	Award    points.Award        `json:"award"`
	User     model.User          `json:"user"`
	Stats    model.UserStats     `json:"stats"`
	Unlocked []model.Achievement `json:"unlocked,omitempty"`
}

// CreateTask fills in id, timestamps and defaults before inserting.
func (r *TaskRepository) CreateTask(ctx context.Context, t model.Task) result.Result[model.Task] {
	timer := utils.TrackDBOperation("insert", "tasks")
	defer timer.ObserveDuration()

	now := r.clock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Status == "" {
		t.Status = model.StatusPending
	}
	if t.Recurrence == "" {
		t.Recurrence = model.RecurrenceNone
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	t.CreatedAt, t.UpdatedAt = now, now
	t.CompletedAt, t.SyncedAt = nil, nil

	if err := storage.InsertTask(ctx, r.store.DB(), t); err != nil {
		return fail[model.Task](r.logger, "task_create", MsgSaveFailed, err, "user_id", t.UserID)
	}

	r.store.Notify(t.UserID, storage.TableTasks)
	r.recalculate(ctx, t.UserID)
	return result.Success(t)
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) result.Result[model.Task] {
	timer := utils.TrackDBOperation("select", "tasks")
	defer timer.ObserveDuration()

	t, err := storage.GetTask(ctx, r.store.DB(), id)
	if err != nil {
		return fail[model.Task](r.logger, "task_get", MsgLoadFailed, err, "task_id", id)
	}
	return result.Success(t)
}

// GetTasks lists a user's tasks, newest first.
func (r *TaskRepository) GetTasks(ctx context.Context, userID string) result.Result[[]model.Task] {
	timer := utils.TrackDBOperation("select", "tasks")
	defer timer.ObserveDuration()

	list, err := storage.ListTasks(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[[]model.Task](r.logger, "tasks_list", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(list)
}

func (r *TaskRepository) GetTasksByStatus(ctx context.Context, userID string, statuses ...model.TaskStatus) result.Result[[]model.Task] {
	timer := utils.TrackDBOperation("select", "tasks")
	defer timer.ObserveDuration()

	list, err := storage.ListTasksByStatus(ctx, r.store.DB(), userID, statuses...)
	if err != nil {
		return fail[[]model.Task](r.logger, "tasks_list_by_status", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(list)
}

// UpdateTask saves the editable fields. Status changes go through
// UpdateStatus or CompleteTask.
func (r *TaskRepository) UpdateTask(ctx context.Context, t model.Task) result.Result[model.Task] {
	timer := utils.TrackDBOperation("update", "tasks")
	defer timer.ObserveDuration()

	t.UpdatedAt = r.clock()
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if err := storage.UpdateTask(ctx, r.store.DB(), t); err != nil {
		return fail[model.Task](r.logger, "task_update", MsgSaveFailed, err, "task_id", t.ID)
	}

	r.store.Notify(t.UserID, storage.TableTasks)
	return r.GetTask(ctx, t.ID)
}

// DeleteTask removes the task and its attachments. Uploaded files are removed
// from blob storage on a best-effort basis.
func (r *TaskRepository) DeleteTask(ctx context.Context, id string) result.Result[struct{}] {
	timer := utils.TrackDBOperation("delete", "tasks")
	defer timer.ObserveDuration()

	t, err := storage.GetTask(ctx, r.store.DB(), id)
	if err != nil {
		return fail[struct{}](r.logger, "task_delete", MsgSaveFailed, err, "task_id", id)
	}
	attachments, err := storage.ListAttachmentsByTask(ctx, r.store.DB(), id)
	if err != nil {
		return fail[struct{}](r.logger, "task_delete", MsgSaveFailed, err, "task_id", id)
	}
	if err := storage.DeleteTask(ctx, r.store.DB(), id); err != nil {
		return fail[struct{}](r.logger, "task_delete", MsgSaveFailed, err, "task_id", id)
	}

	for _, a := range attachments {
		removeLocalFile(r.logger, a.LocalPath)
	}
	if r.blob != nil && len(attachments) > 0 {
		prefix := fmt.Sprintf("attachments/%s/%s/", t.UserID, t.ID)
		if err := r.blob.DeletePrefix(ctx, prefix); err != nil {
			utils.TrackError("blob", "task_files_delete_failed")
			r.logger.Warn("failed to delete task files", "task_id", id, "error", err)
		}
	}

	r.store.Notify(t.UserID, storage.TableTasks, storage.TableAttachments)
	r.recalculate(ctx, t.UserID)
	return result.Success(struct{}{})
}

// CompleteTask marks an open task completed and credits the user in one
// transaction: ledger row, points, XP, level, counters, stats rollup and
// achievements. Completing a task that is already terminal succeeds with
// Awarded=false and changes nothing.
func (r *TaskRepository) CompleteTask(ctx context.Context, taskID string) result.Result[Completion] {
	timer := utils.TrackDBOperation("complete", "tasks")
	defer timer.ObserveDuration()

	now := r.clock()
	var out Completion
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		task, err := storage.GetTask(ctx, tx, taskID)
		if err != nil {
			return err
		}

		flipped, err := storage.CompleteTaskRow(ctx, tx, taskID, now)
		if err != nil {
			return err
		}
		if !flipped {
			out = Completion{Task: task}
			return nil
		}

		u, err := storage.GetUser(ctx, tx, task.UserID)
		if err != nil {
			return err
		}
		award := points.Calculate(task.EffectivePoints(), u.CurrentStreak, u.CurrentXP)

		err = storage.InsertCompletion(ctx, tx, storage.Completion{
			ID:          uuid.NewString(),
			TaskID:      task.ID,
			UserID:      task.UserID,
			Kind:        storage.KindTask,
			Points:      award.Points,
			XP:          award.XP,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		if err := storage.AddUserPoints(ctx, tx, task.UserID, award.Points, award.XP, 1); err != nil {
			return err
		}

		stats, err := storage.RecomputeStats(ctx, tx, task.UserID, now)
		if err != nil {
			return err
		}
		if u, err = storage.GetUser(ctx, tx, task.UserID); err != nil {
			return err
		}
		unlocked, err := advanceAchievements(ctx, tx, u, now)
		if err != nil {
			return err
		}
		if task, err = storage.GetTask(ctx, tx, taskID); err != nil {
			return err
		}

		if r.beforeCommit != nil {
			if err := r.beforeCommit(ctx, tx); err != nil {
				return err
			}
		}

		out = Completion{Task: task, Awarded: true, Award: award, User: u, Stats: stats, Unlocked: unlocked}
		return nil
	})
	if err != nil {
		return fail[Completion](r.logger, "task_complete", MsgCompleteFailed, err, "task_id", taskID)
	}
	if !out.Awarded {
		return result.Success(out)
	}

	userID := out.Task.UserID
	r.store.Notify(userID, storage.TableTasks, storage.TableUsers, storage.TableStats, storage.TableAchievements)
	r.leaderboard.refreshAfterChange(ctx, userID)
	utils.TrackTaskCompletion(out.Award.Points, out.Award.LeveledUp())
	trackUnlocked(out.Unlocked)

	r.logger.Info("task completed",
		"task_id", taskID, "user_id", userID, "points", out.Award.Points, "level", out.Award.NewLevel)
	return result.Success(out)
}

// UpdateStatus applies a lifecycle transition. Moving to COMPLETED delegates
// to CompleteTask so points are credited exactly once.
func (r *TaskRepository) UpdateStatus(ctx context.Context, taskID string, to model.TaskStatus) result.Result[model.Task] {
	if to == model.StatusCompleted {
		return result.Map(r.CompleteTask(ctx, taskID), func(c Completion) model.Task { return c.Task })
	}
	if !to.Valid() {
		return result.Error[model.Task](MsgInvalidTransition, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to))
	}

	timer := utils.TrackDBOperation("update", "tasks")
	defer timer.ObserveDuration()

	t, err := storage.GetTask(ctx, r.store.DB(), taskID)
	if err != nil {
		return fail[model.Task](r.logger, "task_update_status", MsgSaveFailed, err, "task_id", taskID)
	}
	if !t.Status.CanTransitionTo(to) {
		return result.Error[model.Task](MsgInvalidTransition,
			fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to))
	}

	ok, err := storage.SetTaskStatus(ctx, r.store.DB(), taskID, t.Status, to, r.clock())
	if err != nil {
		return fail[model.Task](r.logger, "task_update_status", MsgSaveFailed, err, "task_id", taskID)
	}
	if !ok {
		// Someone else moved the task first.
		return result.Error[model.Task](MsgInvalidTransition,
			fmt.Errorf("%w: task %s changed concurrently", ErrInvalidTransition, taskID))
	}

	r.store.Notify(t.UserID, storage.TableTasks)
	return r.GetTask(ctx, taskID)
}

// MarkOverdue flags open tasks past their due date. An empty userID sweeps
// every user. It returns the number of tasks flagged.
func (r *TaskRepository) MarkOverdue(ctx context.Context, userID string) result.Result[int] {
	timer := utils.TrackDBOperation("update", "tasks")
	defer timer.ObserveDuration()

	n, err := storage.MarkOverdue(ctx, r.store.DB(), userID, r.clock())
	if err != nil {
		return fail[int](r.logger, "tasks_mark_overdue", MsgSaveFailed, err, "user_id", userID)
	}
	if n > 0 {
		r.store.Notify(userID, storage.TableTasks)
	}
	return result.Success(int(n))
}

// WatchTasks is a live query over a user's task list.
func (r *TaskRepository) WatchTasks(ctx context.Context, userID string) *storage.Subscription[[]model.Task] {
	return storage.Watch(ctx, r.store, userID, []storage.Table{storage.TableTasks},
		func(ctx context.Context) result.Result[[]model.Task] {
			return r.GetTasks(ctx, userID)
		})
}

// WatchTask is a live query over one task.
func (r *TaskRepository) WatchTask(ctx context.Context, userID, taskID string) *storage.Subscription[model.Task] {
	return storage.Watch(ctx, r.store, userID, []storage.Table{storage.TableTasks},
		func(ctx context.Context) result.Result[model.Task] {
			return r.GetTask(ctx, taskID)
		})
}

// recalculate keeps total_tasks and the completion rate current after the
// task list changed size.
func (r *TaskRepository) recalculate(ctx context.Context, userID string) {
	if _, err := storage.RecomputeStats(ctx, r.store.DB(), userID, r.clock()); err != nil {
		r.logger.Warn("stats recompute failed", "user_id", userID, "error", err)
		return
	}
	r.store.Notify(userID, storage.TableStats)
}
