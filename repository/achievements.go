package repository

import (
	"context"
	"database/sql"
	"time"

	"taskquest/model"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"
)

type AchievementRepository struct {
	base
}

func (r *AchievementRepository) GetAchievements(ctx context.Context, userID string) result.Result[[]model.Achievement] {
	timer := utils.TrackDBOperation("select", "achievements")
	defer timer.ObserveDuration()

	list, err := storage.ListAchievements(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[[]model.Achievement](r.logger, "achievements_list", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(list)
}

// CheckAchievements advances every locked achievement from the user's current
// counters and returns the ones unlocked by this call.
func (r *AchievementRepository) CheckAchievements(ctx context.Context, userID string) result.Result[[]model.Achievement] {
	timer := utils.TrackDBOperation("update", "achievements")
	defer timer.ObserveDuration()

	now := r.clock()
	var unlocked []model.Achievement
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		u, err := storage.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		unlocked, err = advanceAchievements(ctx, tx, u, now)
		return err
	})
	if err != nil {
		return fail[[]model.Achievement](r.logger, "user_achievements_check", MsgSaveFailed, err, "user_id", userID)
	}

	r.store.Notify(userID, storage.TableAchievements)
	trackUnlocked(unlocked)
	return result.Success(unlocked)
}

func (r *AchievementRepository) WatchAchievements(ctx context.Context, userID string) *storage.Subscription[[]model.Achievement] {
	return storage.Watch(ctx, r.store, userID, []storage.Table{storage.TableAchievements},
		func(ctx context.Context) result.Result[[]model.Achievement] {
			return r.GetAchievements(ctx, userID)
		})
}

// advanceAchievements moves progress for u's locked achievements and reports
// the newly unlocked ones.
func advanceAchievements(ctx context.Context, q storage.Querier, u model.User, now time.Time) ([]model.Achievement, error) {
	list, err := storage.ListAchievements(ctx, q, u.ID)
	if err != nil {
		return nil, err
	}

	var unlocked []model.Achievement
	for _, a := range list {
		next, changed := a.Advance(u, now)
		if !changed {
			continue
		}
		if err := storage.SaveAchievementProgress(ctx, q, next); err != nil {
			return nil, err
		}
		if next.Unlocked {
			unlocked = append(unlocked, next)
		}
	}
	return unlocked, nil
}

func trackUnlocked(list []model.Achievement) {
	for _, a := range list {
		utils.TrackAchievementUnlocked(string(a.Type))
	}
}
