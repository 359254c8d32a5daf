package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"taskquest/model"
	"taskquest/points"
	"taskquest/result"
	"taskquest/storage"
	"taskquest/utils"

	"github.com/google/uuid"
)

type UserRepository struct {
	base
	blob        BlobStore
	leaderboard *LeaderboardRepository
}

// GetUser loads a user and repairs a stored level that drifted from its XP.
func (r *UserRepository) GetUser(ctx context.Context, id string) result.Result[model.User] {
	timer := utils.TrackDBOperation("select", "user")
	defer timer.ObserveDuration()

	u, err := storage.GetUser(ctx, r.store.DB(), id)
	if err != nil {
		return fail[model.User](r.logger, "user_get", MsgLoadFailed, err, "user_id", id)
	}

	if derived := u.DerivedLevel(); u.Level != derived {
		repaired, err := storage.RepairLevel(ctx, r.store.DB(), id)
		if err != nil {
			r.logger.Warn("level repair failed", "user_id", id, "error", err)
		} else if repaired {
			r.logger.Info("repaired user level", "user_id", id, "stored", u.Level, "derived", derived)
			r.store.Notify(id, storage.TableUsers)
		}
		u.Level = derived
	}
	return result.Success(u)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) result.Result[model.User] {
	timer := utils.TrackDBOperation("select", "user")
	defer timer.ObserveDuration()

	u, err := storage.GetUserByEmail(ctx, r.store.DB(), email)
	if err != nil {
		return fail[model.User](r.logger, "user_get_by_email", MsgLoadFailed, err)
	}
	return result.Success(u)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id, displayName, avatarURL string) result.Result[model.User] {
	timer := utils.TrackDBOperation("update", "user")
	defer timer.ObserveDuration()

	if err := storage.UpdateProfile(ctx, r.store.DB(), id, displayName, avatarURL); err != nil {
		return fail[model.User](r.logger, "user_update_profile", MsgSaveFailed, err, "user_id", id)
	}
	r.store.Notify(id, storage.TableUsers)
	r.leaderboard.refreshAfterChange(ctx, id)
	return r.GetUser(ctx, id)
}

// AddPoints credits a positive bonus outside of a task completion. XP, level
// and the stats total move with it; the task counter and the weekly and
// monthly buckets do not.
func (r *UserRepository) AddPoints(ctx context.Context, id string, pts int) result.Result[points.Award] {
	if pts <= 0 {
		return result.Error[points.Award](MsgInvalidPoints, fmt.Errorf("%w: points must be positive, got %d", ErrValidation, pts))
	}

	timer := utils.TrackDBOperation("update", "user")
	defer timer.ObserveDuration()

	now := r.clock()
	var award points.Award
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		u, err := storage.GetUser(ctx, tx, id)
		if err != nil {
			return err
		}
		award = points.Calculate(pts, 0, u.CurrentXP)
		err = storage.InsertCompletion(ctx, tx, storage.Completion{
			ID:          uuid.NewString(),
			UserID:      id,
			Kind:        storage.KindBonus,
			Points:      award.Points,
			XP:          award.XP,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		if err := storage.AddUserPoints(ctx, tx, id, award.Points, award.XP, 0); err != nil {
			return err
		}
		if _, err := storage.RecomputeStats(ctx, tx, id, now); err != nil {
			return err
		}
		u, err = storage.GetUser(ctx, tx, id)
		if err != nil {
			return err
		}
		_, err = advanceAchievements(ctx, tx, u, now)
		return err
	})
	if err != nil {
		return fail[points.Award](r.logger, "user_add_points", MsgSaveFailed, err, "user_id", id)
	}

	r.store.Notify(id, storage.TableUsers, storage.TableStats, storage.TableAchievements)
	r.leaderboard.refreshAfterChange(ctx, id)
	return result.Success(award)
}

// IncrementStreak advances the current streak; the longest streak follows it
// when overtaken.
func (r *UserRepository) IncrementStreak(ctx context.Context, id string) result.Result[model.User] {
	return r.mutateStreak(ctx, id, "user_increment_streak", storage.IncrementStreak)
}

// ResetStreak zeroes the current streak and keeps the longest one.
func (r *UserRepository) ResetStreak(ctx context.Context, id string) result.Result[model.User] {
	return r.mutateStreak(ctx, id, "user_reset_streak", storage.ResetStreak)
}

func (r *UserRepository) mutateStreak(ctx context.Context, id, op string, apply func(context.Context, storage.Querier, string) error) result.Result[model.User] {
	timer := utils.TrackDBOperation("update", "user")
	defer timer.ObserveDuration()

	var (
		u        model.User
		unlocked []model.Achievement
	)
	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := apply(ctx, tx, id); err != nil {
			return err
		}
		var err error
		if u, err = storage.GetUser(ctx, tx, id); err != nil {
			return err
		}
		unlocked, err = advanceAchievements(ctx, tx, u, r.clock())
		return err
	})
	if err != nil {
		return fail[model.User](r.logger, op, MsgSaveFailed, err, "user_id", id)
	}

	trackUnlocked(unlocked)
	r.store.Notify(id, storage.TableUsers, storage.TableAchievements)
	r.leaderboard.refreshAfterChange(ctx, id)
	return result.Success(u)
}

// UploadAvatar stores the image under the user's avatar path and points the
// profile at it.
func (r *UserRepository) UploadAvatar(ctx context.Context, id, fileName, contentType string, body io.Reader) result.Result[model.User] {
	if r.blob == nil {
		return result.Error[model.User](MsgRemoteNotConfigured, ErrRemoteNotConfigured)
	}

	u, err := storage.GetUser(ctx, r.store.DB(), id)
	if err != nil {
		return fail[model.User](r.logger, "user_upload_avatar", MsgUploadFailed, err, "user_id", id)
	}

	path := model.AvatarPath(id, fileName)
	if err := r.blob.Upload(ctx, path, body, contentType); err != nil {
		utils.TrackAttachmentUpload("failed")
		return fail[model.User](r.logger, "user_upload_avatar", MsgUploadFailed, err, "user_id", id)
	}
	utils.TrackAttachmentUpload("uploaded")

	return r.UpdateProfile(ctx, id, u.DisplayName, path)
}

// DownloadAvatar copies the current avatar into w.
func (r *UserRepository) DownloadAvatar(ctx context.Context, id string, w io.Writer) result.Result[int64] {
	if r.blob == nil {
		return result.Error[int64](MsgRemoteNotConfigured, ErrRemoteNotConfigured)
	}
	u, err := storage.GetUser(ctx, r.store.DB(), id)
	if err != nil {
		return fail[int64](r.logger, "user_download_avatar", MsgLoadFailed, err, "user_id", id)
	}
	if u.AvatarURL == "" {
		return result.Error[int64](MsgAttachmentNotFound, ErrNotFound)
	}
	n, err := r.blob.Download(ctx, u.AvatarURL, w)
	if err != nil {
		return fail[int64](r.logger, "user_download_avatar", MsgLoadFailed, err, "user_id", id)
	}
	return result.Success(n)
}

func (r *UserRepository) WatchUser(ctx context.Context, id string) *storage.Subscription[model.User] {
	return storage.Watch(ctx, r.store, id, []storage.Table{storage.TableUsers},
		func(ctx context.Context) result.Result[model.User] {
			return r.GetUser(ctx, id)
		})
}
