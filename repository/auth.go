package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskquest/model"
	"taskquest/result"
	"taskquest/services"
	"taskquest/storage"
	"taskquest/utils"

	"github.com/google/uuid"
)

const passwordResetTTL = time.Hour

type AuthRepository struct {
	base
	tokens      *services.TokenIssuer
	revoker     TokenRevoker
	sessions    SessionCache
	blob        BlobStore
	leaderboard *LeaderboardRepository
}

type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

type SignInInput struct {
	Email     string
	Password  string
	Code      string
	UserAgent string
	IPAddress string
}

// AuthSession is what a successful sign-in hands back to the client.
type AuthSession struct {
	User    model.User         `json:"user"`
	Session model.Session      `json:"session"`
	Tokens  services.TokenPair `json:"tokens"`
}

// SignUp creates the account at level 1 with a zeroed stats row and the
// default achievements.
func (r *AuthRepository) SignUp(ctx context.Context, in SignUpInput) result.Result[model.User] {
	timer := utils.TrackDBOperation("insert", "user")
	defer timer.ObserveDuration()

	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := services.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, services.ErrWeakPassword) {
			return result.Error[model.User](MsgWeakPassword, fmt.Errorf("%w: %v", ErrValidation, err))
		}
		return fail[model.User](r.logger, "auth_sign_up", MsgSaveFailed, err)
	}

	now := r.clock()
	u := model.NewUser(uuid.NewString(), email, strings.TrimSpace(in.DisplayName), now)
	u.PasswordHash = hash

	err = r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := storage.GetUserByEmail(ctx, tx, email); err == nil {
			return ErrEmailTaken
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := storage.InsertUser(ctx, tx, u); err != nil {
			return err
		}
		if err := storage.SaveStats(ctx, tx, model.UserStats{UserID: u.ID, UpdatedAt: now}); err != nil {
			return err
		}
		return storage.InsertAchievements(ctx, tx, model.DefaultAchievements(u.ID, now))
	})
	if errors.Is(err, ErrEmailTaken) {
		utils.TrackAuthAttempt("failed", "sign_up")
		return result.Error[model.User](MsgEmailTaken, err)
	}
	if err != nil {
		utils.TrackAuthAttempt("failed", "sign_up")
		return fail[model.User](r.logger, "auth_sign_up", MsgSaveFailed, err)
	}

	utils.TrackAuthAttempt("success", "sign_up")
	r.logger.Info("user signed up", "user_id", u.ID)
	r.leaderboard.refreshAfterChange(ctx, u.ID)
	return result.Success(u)
}

// SignIn checks the password and, when enabled, the TOTP code, then opens a
// session and issues its tokens.
func (r *AuthRepository) SignIn(ctx context.Context, in SignInInput) result.Result[AuthSession] {
	u, err := storage.GetUserByEmail(ctx, r.store.DB(), strings.TrimSpace(in.Email))
	if err != nil {
		utils.TrackAuthAttempt("failed", "password")
		if errors.Is(err, ErrNotFound) {
			return result.Error[AuthSession](MsgInvalidCredentials, ErrInvalidCredentials)
		}
		return fail[AuthSession](r.logger, "auth_sign_in", MsgUnexpected, err)
	}

	if !services.ComparePasswords(u.PasswordHash, in.Password) {
		utils.TrackAuthAttempt("failed", "password")
		return result.Error[AuthSession](MsgInvalidCredentials, ErrInvalidCredentials)
	}

	if u.TwoFactorEnabled {
		if in.Code == "" {
			return result.Error[AuthSession](MsgTwoFactorRequired, ErrTwoFactorRequired)
		}
		if !services.ValidateTwoFactor(in.Code, u.TwoFactorSecret) {
			utils.TrackAuthAttempt("failed", "totp")
			return result.Error[AuthSession](MsgInvalidTwoFactor, ErrInvalidTwoFactor)
		}
	}

	out, err := r.openSession(ctx, u, in.UserAgent, in.IPAddress)
	if err != nil {
		utils.TrackAuthAttempt("failed", "password")
		return fail[AuthSession](r.logger, "auth_sign_in", MsgUnexpected, err, "user_id", u.ID)
	}

	utils.TrackAuthAttempt("success", "password")
	return result.Success(out)
}

func (r *AuthRepository) openSession(ctx context.Context, u model.User, userAgent, ip string) (AuthSession, error) {
	now := r.clock()
	s := model.Session{
		SessionID:      uuid.NewString(),
		UserID:         u.ID,
		CreatedAt:      now,
		LastActivityAt: now,
		DeviceInfo:     utils.DeviceInfo(userAgent),
		IPAddress:      ip,
		IsActive:       true,
	}
	tokens, err := r.tokens.IssuePair(u.ID, s.SessionID, now)
	if err != nil {
		return AuthSession{}, err
	}
	s.ExpiresAt = tokens.RefreshExpiresAt

	if err := r.createSession(ctx, s); err != nil {
		return AuthSession{}, err
	}
	if err := storage.TouchUser(ctx, r.store.DB(), u.ID, now); err != nil {
		r.logger.Warn("failed to record activity", "user_id", u.ID, "error", err)
	}
	return AuthSession{User: u, Session: s, Tokens: tokens}, nil
}

// Refresh exchanges a refresh token for a new pair within the same session.
// The used refresh token is revoked.
func (r *AuthRepository) Refresh(ctx context.Context, refreshToken string) result.Result[services.TokenPair] {
	claims, err := r.tokens.Parse(refreshToken, services.TokenTypeRefresh)
	if err != nil {
		utils.TrackAuthAttempt("failed", "refresh")
		if errors.Is(err, services.ErrTokenExpired) {
			return result.Error[services.TokenPair](MsgSessionExpired, fmt.Errorf("%w: %v", ErrSessionExpired, err))
		}
		return result.Error[services.TokenPair](MsgInvalidToken, err)
	}
	if err := r.checkToken(ctx, claims); err != nil {
		utils.TrackAuthAttempt("failed", "refresh")
		return result.Error[services.TokenPair](MsgSessionExpired, err)
	}

	pair, err := r.tokens.IssuePair(claims.UserID, claims.SessionID, r.clock())
	if err != nil {
		return fail[services.TokenPair](r.logger, "auth_refresh", MsgUnexpected, err, "user_id", claims.UserID)
	}
	r.revoke(ctx, claims)
	if err := storage.TouchSession(ctx, r.store.DB(), claims.SessionID, r.clock()); err != nil {
		r.logger.Warn("session activity not recorded", "session_id", claims.SessionID, "error", err)
	}

	utils.TrackAuthAttempt("success", "refresh")
	return result.Success(pair)
}

// SignOut ends the session behind claims and blacklists the access token.
func (r *AuthRepository) SignOut(ctx context.Context, claims *services.Claims) result.Result[struct{}] {
	if err := r.endSessions(ctx, claims.SessionID); err != nil && !errors.Is(err, ErrNotFound) {
		return fail[struct{}](r.logger, "session_sign_out", MsgUnexpected, err, "session_id", claims.SessionID)
	}
	r.revoke(ctx, claims)
	return result.Success(struct{}{})
}

func (r *AuthRepository) revoke(ctx context.Context, claims *services.Claims) {
	if r.revoker == nil {
		return
	}
	if err := r.revoker.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		utils.TrackError("cache", "blacklist_add_failed")
		r.logger.Warn("failed to blacklist token", "error", err)
	}
}

// RequestPasswordReset issues a single-use reset token valid for an hour. An
// unknown email yields an empty token and no error.
func (r *AuthRepository) RequestPasswordReset(ctx context.Context, email string) result.Result[string] {
	u, err := storage.GetUserByEmail(ctx, r.store.DB(), strings.TrimSpace(email))
	if errors.Is(err, ErrNotFound) {
		return result.Success("")
	}
	if err != nil {
		return fail[string](r.logger, "auth_reset_request", MsgUnexpected, err)
	}

	token := uuid.NewString()
	if err := storage.InsertPasswordReset(ctx, r.store.DB(), token, u.ID, r.clock().Add(passwordResetTTL)); err != nil {
		return fail[string](r.logger, "auth_reset_request", MsgSaveFailed, err, "user_id", u.ID)
	}
	return result.Success(token)
}

// ConfirmPasswordReset sets the new password and ends every session.
func (r *AuthRepository) ConfirmPasswordReset(ctx context.Context, token, newPassword string) result.Result[struct{}] {
	hash, err := services.HashPassword(newPassword)
	if err != nil {
		return result.Error[struct{}](MsgWeakPassword, fmt.Errorf("%w: %v", ErrValidation, err))
	}

	var userID string
	err = r.store.WithTx(ctx, func(tx *sql.Tx) error {
		id, err := storage.ConsumePasswordReset(ctx, tx, token, r.clock())
		if err != nil {
			return err
		}
		userID = id
		return storage.UpdatePasswordHash(ctx, tx, id, hash)
	})
	if errors.Is(err, ErrNotFound) {
		return result.Error[struct{}](MsgInvalidResetToken, ErrInvalidResetToken)
	}
	if err != nil {
		return fail[struct{}](r.logger, "auth_reset_confirm", MsgSaveFailed, err)
	}

	if err := r.endUserSessions(ctx, userID); err != nil {
		r.logger.Warn("failed to end sessions after reset", "user_id", userID, "error", err)
	}
	return result.Success(struct{}{})
}

// Reauthenticate confirms the password of an already signed-in user before a
// sensitive change.
func (r *AuthRepository) Reauthenticate(ctx context.Context, userID, password string) result.Result[model.User] {
	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[model.User](r.logger, "auth_reauthenticate", MsgUnexpected, err, "user_id", userID)
	}
	if !services.ComparePasswords(u.PasswordHash, password) {
		utils.TrackAuthAttempt("failed", "reauthenticate")
		return result.Error[model.User](MsgInvalidCredentials, ErrInvalidCredentials)
	}
	return result.Success(u)
}

func (r *AuthRepository) ChangePassword(ctx context.Context, userID, current, next string) result.Result[struct{}] {
	if res := r.Reauthenticate(ctx, userID, current); res.IsError() {
		return result.Error[struct{}](res.Message(), res.Cause())
	}
	hash, err := services.HashPassword(next)
	if err != nil {
		return result.Error[struct{}](MsgWeakPassword, fmt.Errorf("%w: %v", ErrValidation, err))
	}
	if err := storage.UpdatePasswordHash(ctx, r.store.DB(), userID, hash); err != nil {
		return fail[struct{}](r.logger, "auth_change_password", MsgSaveFailed, err, "user_id", userID)
	}
	return result.Success(struct{}{})
}

func (r *AuthRepository) ChangeEmail(ctx context.Context, userID, password, email string) result.Result[model.User] {
	if res := r.Reauthenticate(ctx, userID, password); res.IsError() {
		return res
	}
	email = strings.ToLower(strings.TrimSpace(email))

	err := r.store.WithTx(ctx, func(tx *sql.Tx) error {
		if other, err := storage.GetUserByEmail(ctx, tx, email); err == nil && other.ID != userID {
			return ErrEmailTaken
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		return storage.UpdateEmail(ctx, tx, userID, email)
	})
	if errors.Is(err, ErrEmailTaken) {
		return result.Error[model.User](MsgEmailTaken, err)
	}
	if err != nil {
		return fail[model.User](r.logger, "auth_change_email", MsgSaveFailed, err, "user_id", userID)
	}

	r.store.Notify(userID, storage.TableUsers)
	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[model.User](r.logger, "auth_change_email", MsgLoadFailed, err, "user_id", userID)
	}
	return result.Success(u)
}

// SetupTwoFactor stores a fresh secret, still disabled until EnableTwoFactor
// confirms a code from it.
func (r *AuthRepository) SetupTwoFactor(ctx context.Context, userID string) result.Result[services.TwoFactorSetup] {
	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[services.TwoFactorSetup](r.logger, "auth_2fa_setup", MsgUnexpected, err, "user_id", userID)
	}
	if u.TwoFactorEnabled {
		return result.Error[services.TwoFactorSetup](MsgTwoFactorEnabled, ErrValidation)
	}

	setup, err := services.GenerateTwoFactor(u.Email)
	if err != nil {
		return fail[services.TwoFactorSetup](r.logger, "auth_2fa_setup", MsgUnexpected, err, "user_id", userID)
	}
	if err := storage.SetTwoFactor(ctx, r.store.DB(), userID, setup.Secret, false); err != nil {
		return fail[services.TwoFactorSetup](r.logger, "auth_2fa_setup", MsgSaveFailed, err, "user_id", userID)
	}
	return result.Success(setup)
}

func (r *AuthRepository) EnableTwoFactor(ctx context.Context, userID, code string) result.Result[struct{}] {
	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[struct{}](r.logger, "auth_2fa_enable", MsgUnexpected, err, "user_id", userID)
	}
	if u.TwoFactorEnabled {
		return result.Error[struct{}](MsgTwoFactorEnabled, ErrValidation)
	}
	if !services.ValidateTwoFactor(code, u.TwoFactorSecret) {
		return result.Error[struct{}](MsgInvalidTwoFactor, ErrInvalidTwoFactor)
	}
	if err := storage.SetTwoFactor(ctx, r.store.DB(), userID, u.TwoFactorSecret, true); err != nil {
		return fail[struct{}](r.logger, "auth_2fa_enable", MsgSaveFailed, err, "user_id", userID)
	}
	r.store.Notify(userID, storage.TableUsers)
	return result.Success(struct{}{})
}

func (r *AuthRepository) DisableTwoFactor(ctx context.Context, userID, code string) result.Result[struct{}] {
	u, err := storage.GetUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[struct{}](r.logger, "auth_2fa_disable", MsgUnexpected, err, "user_id", userID)
	}
	if !u.TwoFactorEnabled {
		return result.Error[struct{}](MsgTwoFactorDisabled, ErrValidation)
	}
	if !services.ValidateTwoFactor(code, u.TwoFactorSecret) {
		return result.Error[struct{}](MsgInvalidTwoFactor, ErrInvalidTwoFactor)
	}
	if err := storage.SetTwoFactor(ctx, r.store.DB(), userID, "", false); err != nil {
		return fail[struct{}](r.logger, "auth_2fa_disable", MsgSaveFailed, err, "user_id", userID)
	}
	r.store.Notify(userID, storage.TableUsers)
	return result.Success(struct{}{})
}

// DeleteAccount removes the user after confirming the password. Local rows
// cascade; remote documents, files and cached entries are cleaned up after.
func (r *AuthRepository) DeleteAccount(ctx context.Context, userID, password string) result.Result[struct{}] {
	if res := r.Reauthenticate(ctx, userID, password); res.IsError() {
		return result.Error[struct{}](res.Message(), res.Cause())
	}

	active, err := storage.ListActiveSessions(ctx, r.store.DB(), userID, r.clock())
	if err != nil {
		return fail[struct{}](r.logger, "auth_delete_account", MsgDeleteAccountFailed, err, "user_id", userID)
	}
	files, err := storage.ListAttachmentsByUser(ctx, r.store.DB(), userID)
	if err != nil {
		return fail[struct{}](r.logger, "auth_delete_account", MsgDeleteAccountFailed, err, "user_id", userID)
	}

	timer := utils.TrackDBOperation("delete", "user")
	err = storage.DeleteUser(ctx, r.store.DB(), userID)
	timer.ObserveDuration()
	if err != nil {
		return fail[struct{}](r.logger, "auth_delete_account", MsgDeleteAccountFailed, err, "user_id", userID)
	}

	ids := make([]string, 0, len(active))
	for _, s := range active {
		ids = append(ids, s.SessionID)
	}
	r.dropCachedSessions(ctx, ids...)
	for _, a := range files {
		removeLocalFile(r.logger, a.LocalPath)
	}

	if r.blob != nil {
		for _, prefix := range []string{"attachments/" + userID + "/", "avatars/" + userID + "/"} {
			if err := r.blob.DeletePrefix(ctx, prefix); err != nil {
				utils.TrackError("blob", "account_files_delete_failed")
				r.logger.Warn("failed to delete account files", "user_id", userID, "prefix", prefix, "error", err)
			}
		}
	}
	if r.remote != nil {
		if err := r.remote.DeleteUser(ctx, userID); err != nil {
			utils.TrackError("remote", "account_delete_failed")
			r.logger.Warn("failed to delete remote documents", "user_id", userID, "error", err)
		}
	}
	if r.leaderboard.cache != nil {
		if err := r.leaderboard.cache.Remove(ctx, userID); err != nil {
			r.logger.Warn("failed to drop leaderboard score", "user_id", userID, "error", err)
		}
	}

	r.store.Notify(userID, storage.TableUsers, storage.TableTasks, storage.TableAttachments,
		storage.TableStats, storage.TableAchievements)
	r.leaderboard.Refresh(ctx)
	r.logger.Info("account deleted", "user_id", userID)
	return result.Success(struct{}{})
}
