// Package repository is the data boundary of the app. Every public operation
// returns a result.Result; live queries return a storage.Subscription.
package repository

import (
	"context"
	"io"
	"log/slog"
	"time"

	"taskquest/model"
	"taskquest/remote"
	"taskquest/services"
	"taskquest/storage"
)

// BlobStore keeps attachment and avatar files. *blob.GridFS implements it.
type BlobStore interface {
	Upload(ctx context.Context, path string, r io.Reader, contentType string) error
	Download(ctx context.Context, path string, w io.Writer) (int64, error)
	Delete(ctx context.Context, path string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// LeaderboardCache mirrors the ranking. *cache.Leaderboard implements it.
type LeaderboardCache interface {
	Store(ctx context.Context, ranks []model.UserRank) error
	Top(ctx context.Context) ([]model.UserRank, bool, error)
	SetScore(ctx context.Context, userID string, totalPoints int) error
	Remove(ctx context.Context, userID string) error
}

// TokenRevoker tracks revoked token ids. *cache.TokenBlacklist implements it.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// SessionCache fronts the sessions table. *cache.SessionCache implements it.
type SessionCache interface {
	Set(ctx context.Context, s model.Session) error
	Get(ctx context.Context, sessionID string) (model.Session, bool, error)
	Delete(ctx context.Context, sessionIDs ...string) error
}

// Options carries the optional collaborators. Leave a field nil to disable
// the integration.
type Options struct {
	Remote          *remote.Store
	Blob            BlobStore
	Leaderboard     LeaderboardCache
	Revoker         TokenRevoker
	Sessions        SessionCache
	Tokens          *services.TokenIssuer
	AttachmentDir   string
	LeaderboardSize int
	Logger          *slog.Logger
	Clock           func() time.Time
}

// Repositories groups one repository per aggregate over a shared store.
type Repositories struct {
	Users        *UserRepository
	Tasks        *TaskRepository
	Attachments  *AttachmentRepository
	Stats        *UserStatsRepository
	Leaderboard  *LeaderboardRepository
	Achievements *AchievementRepository
	Auth         *AuthRepository
	Sync         *SyncRepository
}

// base is embedded by every repository.
type base struct {
	store  *storage.Store
	remote *remote.Store
	logger *slog.Logger
	now    func() time.Time
}

func (b base) clock() time.Time {
	return b.now().UTC()
}

func New(store *storage.Store, opts Options) *Repositories {
	logger := opts.Logger
	if logger == nil {
		logger = store.Logger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	size := opts.LeaderboardSize
	if size <= 0 {
		size = 50
	}
	b := base{store: store, remote: opts.Remote, logger: logger, now: clock}
	// Tokens are issued at the repository clock; parse them against it too.
	tokens := opts.Tokens
	if tokens != nil {
		tokens = tokens.WithClock(clock)
	}

	achievements := &AchievementRepository{base: b}
	leaderboard := &LeaderboardRepository{base: b, cache: opts.Leaderboard, size: size}
	users := &UserRepository{base: b, blob: opts.Blob, leaderboard: leaderboard}
	tasks := &TaskRepository{base: b, blob: opts.Blob, leaderboard: leaderboard}
	attachments := &AttachmentRepository{base: b, blob: opts.Blob, dir: opts.AttachmentDir}
	stats := &UserStatsRepository{base: b}
	auth := &AuthRepository{
		base:        b,
		tokens:      tokens,
		revoker:     opts.Revoker,
		sessions:    opts.Sessions,
		blob:        opts.Blob,
		leaderboard: leaderboard,
	}

	return &Repositories{
		Users:        users,
		Tasks:        tasks,
		Attachments:  attachments,
		Stats:        stats,
		Leaderboard:  leaderboard,
		Achievements: achievements,
		Auth:         auth,
		Sync:         &SyncRepository{base: b, tasks: tasks, attachments: attachments},
	}
}

// RemoteConfigured reports whether a Mongo backend is attached.
func (r *Repositories) RemoteConfigured() bool {
	return r.Users.remote != nil
}
