package repository

import (
	"context"
	"errors"
	"fmt"

	"taskquest/model"
	"taskquest/result"
	"taskquest/services"
	"taskquest/storage"
	"taskquest/utils"
)

func (r *AuthRepository) createSession(ctx context.Context, s model.Session) error {
	timer := utils.TrackDBOperation("insert", "sessions")
	defer timer.ObserveDuration()

	if err := storage.InsertSession(ctx, r.store.DB(), s); err != nil {
		utils.TrackError("database", "session_creation_failed")
		return err
	}
	if r.sessions != nil {
		if err := r.sessions.Set(ctx, s); err != nil {
			utils.TrackError("cache", "session_cache_set_failed")
			r.logger.Warn("failed to cache session", "session_id", s.SessionID, "error", err)
		}
	}
	return nil
}

// getSession reads through the session cache.
func (r *AuthRepository) getSession(ctx context.Context, sessionID string) (model.Session, error) {
	if r.sessions != nil {
		s, ok, err := r.sessions.Get(ctx, sessionID)
		if err != nil {
			utils.TrackError("cache", "session_cache_get_failed")
			r.logger.Warn("session cache read failed", "session_id", sessionID, "error", err)
		} else if ok {
			return s, nil
		}
	}

	timer := utils.TrackDBOperation("select", "sessions")
	defer timer.ObserveDuration()

	s, err := storage.GetSession(ctx, r.store.DB(), sessionID)
	if err != nil {
		return model.Session{}, err
	}
	if r.sessions != nil && s.Valid(r.clock()) {
		if err := r.sessions.Set(ctx, s); err != nil {
			r.logger.Warn("failed to cache session", "session_id", sessionID, "error", err)
		}
	}
	return s, nil
}

// Authenticate validates an access token and the session it belongs to.
func (r *AuthRepository) Authenticate(ctx context.Context, accessToken string) result.Result[*services.Claims] {
	claims, err := r.tokens.Parse(accessToken, services.TokenTypeAccess)
	if err != nil {
		if errors.Is(err, services.ErrTokenExpired) {
			return result.Error[*services.Claims](MsgSessionExpired, fmt.Errorf("%w: %v", ErrSessionExpired, err))
		}
		return result.Error[*services.Claims](MsgInvalidToken, err)
	}

	if err := r.checkToken(ctx, claims); err != nil {
		if errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrSessionExpired) || errors.Is(err, ErrNotFound) {
			return result.Error[*services.Claims](MsgSessionExpired, err)
		}
		return fail[*services.Claims](r.logger, "session_check", MsgUnexpected, err, "session_id", claims.SessionID)
	}
	return result.Success(claims)
}

// checkToken rejects revoked tokens and tokens whose session ended.
func (r *AuthRepository) checkToken(ctx context.Context, claims *services.Claims) error {
	if r.revoker != nil {
		revoked, err := r.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			utils.TrackError("cache", "blacklist_check_failed")
			r.logger.Warn("token blacklist check failed", "error", err)
		} else if revoked {
			return ErrTokenRevoked
		}
	}

	s, err := r.getSession(ctx, claims.SessionID)
	if err != nil {
		return err
	}
	if s.UserID != claims.UserID || !s.Valid(r.clock()) {
		return ErrSessionExpired
	}
	return nil
}

// ListSessions returns the user's active sessions, most recent first.
func (r *AuthRepository) ListSessions(ctx context.Context, userID string) result.Result[[]model.Session] {
	timer := utils.TrackDBOperation("select", "sessions")
	defer timer.ObserveDuration()

	list, err := storage.ListActiveSessions(ctx, r.store.DB(), userID, r.clock())
	if err != nil {
		return fail[[]model.Session](r.logger, "sessions_list", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(list)
}

// EndSession closes one of the user's sessions, e.g. another device.
func (r *AuthRepository) EndSession(ctx context.Context, userID, sessionID string) result.Result[struct{}] {
	s, err := storage.GetSession(ctx, r.store.DB(), sessionID)
	if err != nil || s.UserID != userID {
		if err == nil {
			err = ErrNotFound
		}
		return fail[struct{}](r.logger, "session_end", MsgSaveFailed, err, "session_id", sessionID)
	}
	if err := r.endSessions(ctx, sessionID); err != nil {
		return fail[struct{}](r.logger, "session_end", MsgSaveFailed, err, "session_id", sessionID)
	}
	return result.Success(struct{}{})
}

func (r *AuthRepository) endSessions(ctx context.Context, sessionIDs ...string) error {
	timer := utils.TrackDBOperation("update", "sessions")
	defer timer.ObserveDuration()

	for _, id := range sessionIDs {
		if err := storage.EndSession(ctx, r.store.DB(), id); err != nil {
			return err
		}
	}
	r.dropCachedSessions(ctx, sessionIDs...)
	return nil
}

// endUserSessions closes every session of the user.
func (r *AuthRepository) endUserSessions(ctx context.Context, userID string) error {
	active, err := storage.ListActiveSessions(ctx, r.store.DB(), userID, r.clock())
	if err != nil {
		return err
	}
	if _, err := storage.EndUserSessions(ctx, r.store.DB(), userID); err != nil {
		return err
	}
	ids := make([]string, 0, len(active))
	for _, s := range active {
		ids = append(ids, s.SessionID)
	}
	r.dropCachedSessions(ctx, ids...)
	return nil
}

func (r *AuthRepository) dropCachedSessions(ctx context.Context, ids ...string) {
	if r.sessions == nil || len(ids) == 0 {
		return
	}
	if err := r.sessions.Delete(ctx, ids...); err != nil {
		utils.TrackError("cache", "session_cache_delete_failed")
		r.logger.Warn("failed to drop cached sessions", "error", err)
	}
}
