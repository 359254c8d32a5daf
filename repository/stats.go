package repository

import (
	"context"
	"database/sql"

	"taskquest/model"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"
)

type UserStatsRepository struct {
	base
}

func (r *UserStatsRepository) GetStats(ctx context.Context, userID string) result.Result[model.UserStats] {
	timer := utils.TrackDBOperation("select", "user_stats")
	defer timer.ObserveDuration()

	s, err := storage.GetStats(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[model.UserStats](r.logger, "stats_get", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(s)
}

// RecalculateStats rebuilds the rollup from the completion ledger. The
// completion path uses the same computation.
func (r *UserStatsRepository) RecalculateStats(ctx context.Context, userID string) result.Result[model.UserStats] {
	timer := utils.TrackDBOperation("recompute", "user_stats")
	defer timer.ObserveDuration()

	var s model.UserStats
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := storage.GetUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		s, err = storage.RecomputeStats(ctx, tx, userID, r.clock())
		return err
	})
	if err != nil {
		return fail[model.UserStats](r.logger, "user_stats_recalculate", MsgSaveFailed, err, "user_id", userID)
	}

	r.store.Notify(userID, storage.TableStats)
	return result.Success(s)
}

// ResetPeriods recomputes every user's rollup at the current time, which
// empties the daily, weekly and monthly buckets whose window has passed. It
// returns the number of users processed.
func (r *UserStatsRepository) ResetPeriods(ctx context.Context) result.Result[int] {
	timer := utils.TrackDBOperation("recompute", "user_stats")
	defer timer.ObserveDuration()

	now := r.clock()
	var n int
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		ids, err := storage.ListUserIDs(ctx, tx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if _, err := storage.RecomputeStats(ctx, tx, id, now); err != nil {
				return err
			}
		}
		n = len(ids)
		return storage.RefreshLeaderboard(ctx, tx, now)
	})
	if err != nil {
		return fail[int](r.logger, "stats_reset_periods", MsgSaveFailed, err)
	}

	r.store.Notify("", storage.TableStats, storage.TableLeaderboard)
	return result.Success(n)
}

func (r *UserStatsRepository) WatchStats(ctx context.Context, userID string) *storage.Subscription[model.UserStats] {
	return storage.Watch(ctx, r.store, userID, []storage.Table{storage.TableStats},
		func(ctx context.Context) result.Result[model.UserStats] {
			return r.GetStats(ctx, userID)
		})
}
