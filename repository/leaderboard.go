package repository

import (
	"context"
	"database/sql"

	"taskquest/model"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"
)

type LeaderboardRepository struct {
	base
	cache LeaderboardCache
	size  int
}

// Refresh rebuilds the ranking table and the cached top list.
func (r *LeaderboardRepository) Refresh(ctx context.Context) result.Result[[]model.UserRank] {
	timer := utils.TrackDBOperation("refresh", "leaderboard")
	defer timer.ObserveDuration()

	var top []model.UserRank
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := storage.RefreshLeaderboard(ctx, tx, r.clock()); err != nil {
			return err
		}
		var err error
		top, err = storage.TopRanks(ctx, tx, r.size)
		return err
	})
	if err != nil {
		return fail[[]model.UserRank](r.logger, "leaderboard_refresh", MsgSaveFailed, err)
	}

	r.store.Notify("", storage.TableLeaderboard)
	if r.cache != nil {
		if err := r.cache.Store(ctx, top); err != nil {
			utils.TrackError("cache", "leaderboard_store_failed")
			r.logger.Warn("leaderboard cache store failed", "error", err)
		}
	}
	return result.Success(top)
}

// refreshAfterChange runs after a user's points or profile changed. Failures
// are logged; the ranking catches up on the next refresh.
func (r *LeaderboardRepository) refreshAfterChange(ctx context.Context, userID string) {
	res := r.Refresh(ctx)
	if res.IsError() || r.cache == nil {
		return
	}
	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return
	}
	if err := r.cache.SetScore(ctx, userID, u.TotalPoints); err != nil {
		utils.TrackError("cache", "leaderboard_score_failed")
		r.logger.Warn("leaderboard score update failed", "user_id", userID, "error", err)
	}
	// SetScore drops the cached list; put the fresh one back.
	top, _ := res.Value()
	if err := r.cache.Store(ctx, top); err != nil {
		r.logger.Warn("leaderboard cache store failed", "error", err)
	}
}

// GetTop returns the first limit ranks, from the cache when it is warm.
func (r *LeaderboardRepository) GetTop(ctx context.Context, limit int) result.Result[[]model.UserRank] {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	if r.cache != nil {
		cached, ok, err := r.cache.Top(ctx)
		if err != nil {
			utils.TrackError("cache", "leaderboard_read_failed")
			r.logger.Warn("leaderboard cache read failed", "error", err)
		} else if ok {
			if len(cached) > limit {
				cached = cached[:limit]
			}
			return result.Success(cached)
		}
	}

	timer := utils.TrackDBOperation("select", "leaderboard")
	defer timer.ObserveDuration()

	ranks, err := storage.TopRanks(ctx, r.store.DB(), limit)
	if err != nil {
		return fail[[]model.UserRank](r.logger, "leaderboard_top", MsgLoadFailed, err)
	}
	return result.Success(ranks)
}

// GetWeekly orders by points earned in the current week.
func (r *LeaderboardRepository) GetWeekly(ctx context.Context, limit int) result.Result[[]model.UserRank] {
	if limit <= 0 || limit > r.size {
		limit = r.size
	}

	timer := utils.TrackDBOperation("select", "leaderboard")
	defer timer.ObserveDuration()

	ranks, err := storage.WeeklyRanks(ctx, r.store.DB(), limit)
	if err != nil {
		return fail[[]model.UserRank](r.logger, "leaderboard_weekly", MsgLoadFailed, err)
	}
	return result.Success(ranks)
}

func (r *LeaderboardRepository) GetUserRank(ctx context.Context, userID string) result.Result[model.UserRank] {
	timer := utils.TrackDBOperation("select", "leaderboard")
	defer timer.ObserveDuration()

	rank, err := storage.GetRank(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[model.UserRank](r.logger, "rank_get", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(rank)
}

// WatchTop is a live query over the global ranking.
func (r *LeaderboardRepository) WatchTop(ctx context.Context, limit int) *storage.Subscription[[]model.UserRank] {
	return storage.Watch(ctx, r.store, "", []storage.Table{storage.TableLeaderboard},
		func(ctx context.Context) result.Result[[]model.UserRank] {
			return r.GetTop(ctx, limit)
		})
}
