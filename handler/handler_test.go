package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"taskquest/config"
	"taskquest/repository"
	"taskquest/services"
	"taskquest/storage"
	"taskquest/usecase"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

const password = "secreto1!"

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t      *testing.T
	store  *storage.Store
	repos  *repository.Repositories
	router *gin.Engine

	mu     sync.Mutex
	resets map[string]string
}

func newTestServer(t *testing.T, checks map[string]func(context.Context) error) *testServer {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "taskquest.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := func() time.Time { return now }
	tokens := services.NewTokenIssuer(config.JWTConfig{
		SecretKey:         "test_secret_key",
		AccessExpiration:  time.Hour,
		RefreshExpiration: 24 * time.Hour,
		Issuer:            "taskquest",
	}).WithClock(clock)
	repos := repository.New(store, repository.Options{
		Tokens:        tokens,
		AttachmentDir: t.TempDir(),
		Clock:         clock,
	})

	s := &testServer{t: t, store: store, repos: repos, resets: map[string]string{}}
	h := New(repos, usecase.NewTaskService(repos.Tasks, clock), Options{
		Clock:        clock,
		KeepAlive:    time.Hour,
		HealthChecks: checks,
		OnPasswordReset: func(_ context.Context, email, token string) {
			s.mu.Lock()
			s.resets[email] = token
			s.mu.Unlock()
		},
	})
	s.router = h.Router(nil)
	return s
}

type envelope[T any] struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Data    T      `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var out envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) request(method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(raw)
	}
	return s.request(method, path, token, r, "application/json")
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type loginData struct {
	User struct {
		ID string `json:"id"`
	} `json:"user"`
	Tokens tokenPair `json:"tokens"`
}

// account registers and signs in, returning the user id and access token.
func (s *testServer) account(email, name string) (string, string) {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": password, "display_name": name,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	data := decode[loginData](s.t, w).Data
	require.NotEmpty(s.t, data.Tokens.AccessToken)
	return data.User.ID, data.Tokens.AccessToken
}

type taskData struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	Priority        string `json:"priority"`
	PriorityColor   string `json:"priority_color"`
	EffectivePoints int    `json:"effective_points"`
}

func (s *testServer) createTask(token string, body gin.H) taskData {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/tasks", token, body)
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[taskData](s.t, w).Data
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrNotFound, http.StatusNotFound},
		{repository.ErrValidation, http.StatusBadRequest},
		{repository.ErrInvalidResetToken, http.StatusBadRequest},
		{repository.ErrInvalidTransition, http.StatusConflict},
		{repository.ErrEmailTaken, http.StatusConflict},
		{repository.ErrInvalidCredentials, http.StatusUnauthorized},
		{repository.ErrTokenRevoked, http.StatusUnauthorized},
		{services.ErrWrongTokenType, http.StatusUnauthorized},
		{repository.ErrRemoteNotConfigured, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)
	s.account("ana@example.com", "Ana")

	w := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "ana@example.com", "password": password, "display_name": "Otra",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, repository.MsgEmailTaken, decode[any](t, w).Error)

	w = s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": "bea@example.com", "password": "abc", "display_name": "Bea",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "otra1!"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, repository.MsgInvalidCredentials, decode[any](t, w).Error)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/tasks", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/tasks", "not-a-jwt", nil).Code)

	_, token := s.account("ana@example.com", "Ana")
	w := s.do(http.MethodGet, "/api/user/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	profile := decode[struct {
		DisplayName   string  `json:"display_name"`
		Level         int     `json:"level"`
		XPToNextLevel int     `json:"xp_to_next_level"`
		LevelProgress float64 `json:"level_progress"`
	}](t, w).Data
	assert.Equal(t, "Ana", profile.DisplayName)
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, 1000, profile.XPToNextLevel)
}

func TestLogoutRevokesSession(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.account("ana@example.com", "Ana")

	w := s.do(http.MethodGet, "/api/auth/sessions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	sessions := decode[[]struct {
		DeviceInfo string `json:"device_info"`
		Current    bool   `json:"current"`
	}](t, w).Data
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Current)
	assert.Contains(t, sessions[0].DeviceInfo, "Android")

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/user/profile", token, nil).Code)
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.account("ana@example.com", "Ana")

	w := s.do(http.MethodPost, "/api/auth/password-reset", "", gin.H{"email": "nadie@example.com"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	w = s.do(http.MethodPost, "/api/auth/password-reset", "", gin.H{"email": "ana@example.com"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	s.mu.Lock()
	token, ok := s.resets["ana@example.com"]
	_, leaked := s.resets["nadie@example.com"]
	s.mu.Unlock()
	require.True(t, ok)
	assert.False(t, leaked)

	w = s.do(http.MethodPost, "/api/auth/password-reset/confirm", "", gin.H{"token": token, "new_password": "nueva22?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/auth/password-reset/confirm", "", gin.H{"token": token, "new_password": "nueva33?"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, repository.MsgInvalidResetToken, decode[any](t, w).Error)

	w = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "ana@example.com", "password": "nueva22?"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	_, ana := s.account("ana@example.com", "Ana")
	_, bea := s.account("bea@example.com", "Bea")

	task := s.createTask(ana, gin.H{"title": "Informe", "priority": "alta", "tags": []string{"trabajo"}})
	assert.Equal(t, "HIGH", task.Priority)
	assert.Equal(t, "#F44336", task.PriorityColor)
	assert.Equal(t, 200, task.EffectivePoints)
	s.createTask(ana, gin.H{"title": "Comprar pan", "priority": "LOW"})

	w := s.do(http.MethodGet, "/api/tasks?priority=alta", ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]taskData](t, w).Data
	require.Len(t, list, 1)
	assert.Equal(t, "Informe", list[0].Title)

	w = s.do(http.MethodGet, "/api/tasks/search?q=INFORME", ana, nil)
	assert.Len(t, decode[[]taskData](t, w).Data, 1)

	w = s.do(http.MethodGet, "/api/tasks/tags", ana, nil)
	assert.Equal(t, []string{"trabajo"}, decode[[]string](t, w).Data)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/tasks/"+task.ID, bea, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/api/tasks/"+task.ID+"/complete", bea, nil).Code)

	w = s.do(http.MethodPut, "/api/tasks/"+task.ID, ana, gin.H{"title": "Informe anual"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Informe anual", decode[taskData](t, w).Data.Title)

	type completion struct {
		Awarded bool `json:"awarded"`
		Award   struct {
			Points int `json:"points"`
		} `json:"award"`
		Unlocked []struct {
			Title string `json:"title"`
		} `json:"unlocked"`
	}
	w = s.do(http.MethodPost, "/api/tasks/"+task.ID+"/complete", ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	done := decode[completion](t, w).Data
	assert.True(t, done.Awarded)
	assert.Equal(t, 200, done.Award.Points)
	require.Len(t, done.Unlocked, 1)
	assert.Equal(t, "Primera tarea", done.Unlocked[0].Title)

	w = s.do(http.MethodPost, "/api/tasks/"+task.ID+"/complete", ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[completion](t, w).Data.Awarded, "second completion awards nothing")

	w = s.do(http.MethodPut, "/api/tasks/"+task.ID+"/status", ana, gin.H{"status": "PENDING"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(http.MethodGet, "/api/user/stats", ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 200, decode[struct {
		TotalPoints int `json:"total_points"`
	}](t, w).Data.TotalPoints)

	w = s.do(http.MethodGet, "/api/tasks/summary", ana, nil)
	summary := decode[struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
	}](t, w).Data
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Completed)

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/tasks/"+task.ID, ana, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/tasks/"+task.ID, ana, nil).Code)
}

func TestTaskValidation(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.account("ana@example.com", "Ana")

	w := s.do(http.MethodPost, "/api/tasks", token, gin.H{"title": "x", "priority": "URGENTE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, repository.MsgValidation, decode[any](t, w).Error)

	w = s.do(http.MethodPost, "/api/tasks", token, gin.H{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, usecase.MsgTitleRequired, decode[any](t, w).Error)

	w = s.do(http.MethodGet, "/api/tasks/upcoming?days=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, usecase.MsgInvalidDays, decode[any](t, w).Error)
}

func TestAddPointsNeedsPositiveAmount(t *testing.T) {
	s := newTestServer(t, nil)
	_, token := s.account("ana@example.com", "Ana")

	for _, pts := range []int{-5000, 0} {
		w := s.do(http.MethodPost, "/api/user/points", token, gin.H{"points": pts})
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}

	w := s.do(http.MethodPost, "/api/user/points", token, gin.H{"points": 300})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/user/stats", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[struct {
		TotalPoints  int `json:"total_points"`
		WeeklyPoints int `json:"weekly_points"`
	}](t, w).Data
	assert.Equal(t, 300, stats.TotalPoints)
	assert.Zero(t, stats.WeeklyPoints)

	w = s.do(http.MethodGet, "/api/user/profile", token, nil)
	profile := decode[struct {
		Level       int `json:"level"`
		TotalPoints int `json:"total_points"`
	}](t, w).Data
	assert.Equal(t, 1, profile.Level)
	assert.Equal(t, 300, profile.TotalPoints)
}

func multipartBody(t *testing.T, field, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestAttachmentEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	_, ana := s.account("ana@example.com", "Ana")
	_, bea := s.account("bea@example.com", "Bea")
	task := s.createTask(ana, gin.H{"title": "Viaje"})

	body, ct := multipartBody(t, "file", "billete.pdf", "application/pdf", []byte("%PDF-1.7 billete"))
	w := s.request(http.MethodPost, "/api/tasks/"+task.ID+"/attachments", ana, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	att := decode[struct {
		ID            string `json:"id"`
		Type          string `json:"type"`
		UploadStatus  string `json:"upload_status"`
		FormattedSize string `json:"formatted_size"`
	}](t, w).Data
	assert.Equal(t, "DOCUMENT", att.Type)
	assert.Equal(t, "PENDING", att.UploadStatus)
	assert.Equal(t, "16 B", att.FormattedSize)

	body, ct = multipartBody(t, "file", "x.txt", "text/plain", []byte("x"))
	w = s.request(http.MethodPost, "/api/tasks/"+task.ID+"/attachments", bea, body, ct)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/tasks/"+task.ID+"/attachments", ana, nil)
	assert.Len(t, decode[[]any](t, w).Data, 1)

	w = s.do(http.MethodGet, "/api/attachments/pending", ana, nil)
	assert.Len(t, decode[[]any](t, w).Data, 1)

	w = s.do(http.MethodGet, "/api/attachments/"+att.ID, ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.7 billete", w.Body.String())
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "billete.pdf")

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/attachments/"+att.ID, bea, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/attachments/"+att.ID, bea, nil).Code)

	w = s.do(http.MethodPost, "/api/attachments/upload", ana, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, repository.MsgRemoteNotConfigured, decode[any](t, w).Error)

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/attachments/"+att.ID, ana, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/attachments/"+att.ID, ana, nil).Code)
}

func TestLeaderboardAndSyncEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	anaID, ana := s.account("ana@example.com", "Ana")
	_, bea := s.account("bea@example.com", "Bea")

	task := s.createTask(ana, gin.H{"title": "Correr", "priority": "MEDIUM"})
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/tasks/"+task.ID+"/complete", ana, nil).Code)

	type rank struct {
		Rank        int    `json:"rank"`
		UserID      string `json:"user_id"`
		TotalPoints int    `json:"total_points"`
	}
	w := s.do(http.MethodGet, "/api/leaderboard?limit=1", bea, nil)
	require.Equal(t, http.StatusOK, w.Code)
	top := decode[[]rank](t, w).Data
	require.Len(t, top, 1)
	assert.Equal(t, anaID, top[0].UserID)
	assert.Equal(t, 100, top[0].TotalPoints)

	w = s.do(http.MethodGet, "/api/leaderboard/me", bea, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[rank](t, w).Data.Rank)

	for _, path := range []string{"/api/sync", "/api/sync/push", "/api/sync/pull"} {
		w = s.do(http.MethodPost, path, ana, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/api/leaderboard/remote", ana, nil).Code)
}

func TestHealth(t *testing.T) {
	ok := newTestServer(t, map[string]func(context.Context) error{
		"sqlite": func(ctx context.Context) error { return nil },
	})
	w := ok.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "ok", report.Checks["sqlite"])
	assert.Nil(t, report.Mongo)

	down := newTestServer(t, map[string]func(context.Context) error{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	w = down.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
