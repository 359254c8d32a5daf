package repository

import (
	"context"
	"database/sql"
	"errors"

	"taskquest/model"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"

	"golang.org/x/sync/errgroup"
)

// SyncRepository pushes local state to the remote document store and pulls
// tasks back. Every method fails with ErrRemoteNotConfigured when no remote
// store is attached.
type SyncRepository struct {
	base
	tasks       *TaskRepository
	attachments *AttachmentRepository
}

// SyncReport counts what one SyncUser call pushed.
type SyncReport struct {
	Tasks        int           `json:"tasks"`
	Achievements int           `json:"achievements"`
	Ranks        int           `json:"ranks"`
	Uploads      *UploadReport `json:"uploads,omitempty"`
}

func notConfigured[T any]() result.Result[T] {
	return result.Error[T](MsgRemoteNotConfigured, ErrRemoteNotConfigured)
}

// PushTasks upserts the user's tasks changed since their last sync.
func (r *SyncRepository) PushTasks(ctx context.Context, userID string) result.Result[int] {
	if r.remote == nil {
		return notConfigured[int]()
	}
	n, err := r.pushTasks(ctx, userID)
	if err != nil {
		return fail[int](r.logger, "sync_push_tasks", MsgSyncFailed, err, "user_id", userID)
	}
	return result.Success(n)
}

func (r *SyncRepository) pushTasks(ctx context.Context, userID string) (int, error) {
	pending, err := storage.ListUnsyncedTasks(ctx, r.store.DB(), userID)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	if err := r.remote.UpsertTasks(ctx, pending); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(pending))
	for _, t := range pending {
		ids = append(ids, t.ID)
	}
	if err := storage.MarkTasksSynced(ctx, r.store.DB(), ids, r.clock()); err != nil {
		return 0, err
	}
	return len(pending), nil
}

// PullTasks copies remote tasks into the local store when they are missing
// locally or newer than the local copy. It returns the number applied.
func (r *SyncRepository) PullTasks(ctx context.Context, userID string) result.Result[int] {
	if r.remote == nil {
		return notConfigured[int]()
	}

	remoteTasks, err := r.remote.FetchTasks(ctx, userID)
	if err != nil {
		return fail[int](r.logger, "sync_pull_tasks", MsgSyncFailed, err, "user_id", userID)
	}
	return r.mergeTasks(ctx, userID, remoteTasks)
}

// mergeTasks applies pulled tasks. Status is owned by the local ledger: a
// task credited locally stays COMPLETED, a local CANCELLED stays cancelled,
// and a remote completion is credited through CompleteTask after the merge.
func (r *SyncRepository) mergeTasks(ctx context.Context, userID string, remoteTasks []model.Task) result.Result[int] {
	now := r.clock()
	var ids, toComplete []string
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, t := range remoteTasks {
			if t.UserID != userID {
				continue
			}
			local, err := storage.GetTask(ctx, tx, t.ID)
			exists := err == nil
			switch {
			case errors.Is(err, ErrNotFound):
			case err != nil:
				return err
			case !t.UpdatedAt.After(local.UpdatedAt):
				continue
			}

			credited, err := storage.HasCompletion(ctx, tx, t.ID)
			if err != nil {
				return err
			}
			switch {
			case credited:
				if t.Status != model.StatusCompleted {
					t.Status, t.CompletedAt = model.StatusCompleted, local.CompletedAt
				}
				if t.CompletedAt == nil {
					t.CompletedAt = &now
				}
			case exists && local.Status.IsTerminal():
				t.Status, t.CompletedAt = local.Status, local.CompletedAt
			case t.Status == model.StatusCompleted:
				t.Status, t.CompletedAt = model.StatusPending, nil
				if exists {
					t.Status = local.Status
				}
				toComplete = append(toComplete, t.ID)
			}

			if err := storage.UpsertTask(ctx, tx, t); err != nil {
				return err
			}
			ids = append(ids, t.ID)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := storage.MarkTasksSynced(ctx, tx, ids, now); err != nil {
			return err
		}
		_, err := storage.RecomputeStats(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return fail[int](r.logger, "sync_pull_tasks", MsgSyncFailed, err, "user_id", userID)
	}
	if len(ids) > 0 {
		r.store.Notify(userID, storage.TableTasks, storage.TableStats)
	}

	for _, id := range toComplete {
		if res := r.tasks.CompleteTask(ctx, id); res.IsError() {
			r.logger.Warn("crediting pulled completion failed", "task_id", id, "error", res.Err())
		}
	}
	return result.Success(len(ids))
}

// SyncUser pushes the profile, stats, achievements, changed tasks and the
// current ranking in parallel, then drains the upload queue when blob
// storage is attached.
func (r *SyncRepository) SyncUser(ctx context.Context, userID string) result.Result[SyncReport] {
	if r.remote == nil {
		return notConfigured[SyncReport]()
	}

	timer := utils.TrackDBOperation("sync", "remote")
	defer timer.ObserveDuration()

	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[SyncReport](r.logger, "user_sync", MsgSyncFailed, err, "user_id", userID)
	}

	var report SyncReport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.remote.UpsertUser(gctx, u)
	})
	g.Go(func() error {
		st, err := storage.GetStats(gctx, r.store.DB(), userID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return r.remote.UpsertStats(gctx, st)
	})
	g.Go(func() error {
		list, err := storage.ListAchievements(gctx, r.store.DB(), userID)
		if err != nil {
			return err
		}
		report.Achievements = len(list)
		return r.remote.UpsertAchievements(gctx, list)
	})
	g.Go(func() error {
		n, err := r.pushTasks(gctx, userID)
		report.Tasks = n
		return err
	})
	g.Go(func() error {
		ranks, err := storage.TopRanks(gctx, r.store.DB(), r.tasks.leaderboard.size)
		if err != nil {
			return err
		}
		report.Ranks = len(ranks)
		return r.remote.UpsertRanks(gctx, ranks)
	})

	if err := g.Wait(); err != nil {
		return fail[SyncReport](r.logger, "sync_user", MsgSyncFailed, err, "user_id", userID)
	}

	if r.attachments.blob != nil {
		res := r.attachments.UploadPending(ctx, userID)
		if up, ok := res.Value(); ok {
			report.Uploads = &up
		} else {
			r.logger.Warn("upload drain failed during sync", "user_id", userID, "error", res.Err())
		}
	}

	if report.Tasks > 0 {
		r.store.Notify(userID, storage.TableTasks)
	}
	r.logger.Info("user synced", "user_id", userID, "tasks", report.Tasks, "ranks", report.Ranks)
	return result.Success(report)
}

// FetchRemoteRanks reads the ranking as last pushed to the remote store.
func (r *SyncRepository) FetchRemoteRanks(ctx context.Context, limit int) result.Result[[]model.UserRank] {
	if r.remote == nil {
		return notConfigured[[]model.UserRank]()
	}
	ranks, err := r.remote.FetchRanks(ctx, int64(limit))
	if err != nil {
		return fail[[]model.UserRank](r.logger, "sync_fetch_ranks", MsgSyncFailed, err)
	}
	return result.Success(ranks)
}
