package repository

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"taskquest/config"
	"taskquest/model"
	"taskquest/services"
	"taskquest/storage"

	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeBlob struct {
	mu       sync.Mutex
	files    map[string][]byte
	failing  map[string]bool // file names whose upload fails
	prefixes []string
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{files: map[string][]byte{}, failing: map[string]bool{}}
}

func (b *fakeBlob) Upload(_ context.Context, path string, r io.Reader, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name := range b.failing {
		if strings.HasSuffix(path, "_"+name) {
			return errors.New("upload rejected")
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.files[path] = data
	return nil
}

func (b *fakeBlob) Download(_ context.Context, path string, w io.Writer) (int64, error) {
	b.mu.Lock()
	data, ok := b.files[path]
	b.mu.Unlock()
	if !ok {
		return 0, ErrNotFound
	}
	return io.Copy(w, bytes.NewReader(data))
}

func (b *fakeBlob) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, path)
	return nil
}

func (b *fakeBlob) DeletePrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.prefixes = append(b.prefixes, prefix)
	for k := range b.files {
		if strings.HasPrefix(k, prefix) {
			delete(b.files, k)
		}
	}
	return nil
}

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (f *fakeRevoker) Revoke(_ context.Context, id string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[id] = exp
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[id]
	return ok, nil
}

type fakeSessionCache struct {
	mu       sync.Mutex
	sessions map[string]model.Session
}

func (f *fakeSessionCache) Set(_ context.Context, s model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[string]model.Session{}
	}
	f.sessions[s.SessionID] = s
	return nil
}

func (f *fakeSessionCache) Get(_ context.Context, id string) (model.Session, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok, nil
}

func (f *fakeSessionCache) Delete(_ context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.sessions, id)
	}
	return nil
}

type fakeLeaderboardCache struct {
	mu     sync.Mutex
	top    []model.UserRank
	warm   bool
	scores map[string]int
}

func (f *fakeLeaderboardCache) Store(_ context.Context, ranks []model.UserRank) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.top, f.warm = ranks, true
	return nil
}

func (f *fakeLeaderboardCache) Top(context.Context) ([]model.UserRank, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.top, f.warm, nil
}

func (f *fakeLeaderboardCache) SetScore(_ context.Context, userID string, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scores == nil {
		f.scores = map[string]int{}
	}
	f.scores[userID] = total
	f.warm = false
	return nil
}

func (f *fakeLeaderboardCache) Remove(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scores, userID)
	f.warm = false
	return nil
}

type testEnv struct {
	store   *storage.Store
	repos   *Repositories
	clock   *testClock
	blob    *fakeBlob
	revoker *fakeRevoker
	board   *fakeLeaderboardCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "taskquest.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:   store,
		clock:   &testClock{now: testStart},
		blob:    newFakeBlob(),
		revoker: &fakeRevoker{},
		board:   &fakeLeaderboardCache{},
	}
	env.repos = New(store, Options{
		Blob:        env.blob,
		Leaderboard: env.board,
		Revoker:     env.revoker,
		Sessions:    &fakeSessionCache{},
		Tokens: services.NewTokenIssuer(config.JWTConfig{
			SecretKey:         "test_secret_key",
			AccessExpiration:  time.Hour,
			RefreshExpiration: 24 * time.Hour,
			Issuer:            "taskquest",
		}),
		AttachmentDir:   filepath.Join(t.TempDir(), "attachments"),
		LeaderboardSize: 10,
		Clock:           env.clock.Now,
	})
	return env
}

const testPassword = "secreto1!"

func (e *testEnv) signUp(t *testing.T, email string) model.User {
	t.Helper()
	res := e.repos.Auth.SignUp(context.Background(), SignUpInput{
		Email:       email,
		Password:    testPassword,
		DisplayName: strings.Split(email, "@")[0],
	})
	u, ok := res.Value()
	require.True(t, ok, res.String())
	return u
}

func (e *testEnv) createTask(t *testing.T, userID string, p model.Priority) model.Task {
	t.Helper()
	res := e.repos.Tasks.CreateTask(context.Background(), model.Task{
		UserID:   userID,
		Title:    "Tarea " + string(p),
		Priority: p,
	})
	task, ok := res.Value()
	require.True(t, ok, res.String())
	return task
}

func (e *testEnv) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.store.DB().QueryRow(query, args...).Scan(&n))
	return n
}
