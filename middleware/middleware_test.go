package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskquest/repository"
	"taskquest/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCredsOn bool
	}{
		{"open", nil, http.MethodGet, "https://any.example", http.StatusOK, "*", false},
		{"allowed origin", []string{"https://app.example"}, http.MethodGet, "https://app.example", http.StatusOK, "https://app.example", true},
		{"foreign origin", []string{"https://app.example"}, http.MethodGet, "https://evil.example", http.StatusOK, "", false},
		{"preflight", []string{"https://app.example"}, http.MethodOptions, "https://app.example", http.StatusNoContent, "https://app.example", true},
		{"foreign preflight", []string{"https://app.example"}, http.MethodOptions, "https://evil.example", http.StatusForbidden, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.allowed))
			r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

			req := httptest.NewRequest(tt.method, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			w := serve(r, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCredsOn, w.Header().Get("Access-Control-Allow-Credentials") == "true")
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(quietLogger()))
	r.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var body utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, repository.MsgUnexpected, body.Error)
}

func TestRequestSizeLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RequestSizeLimiter(8))
	r.POST("/upload", func(c *gin.Context) {
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "cut")
			return
		}
		c.String(http.StatusOK, string(data))
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "small", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("far too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "demasiado grande")

	// No declared length: the reader stops at the limit.
	req := httptest.NewRequest(http.MethodPost, "/upload", io.MultiReader(bytes.NewReader([]byte("0123456789"))))
	req.ContentLength = -1
	w = serve(r, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "cut", w.Body.String())
}

func TestRequestTracing(t *testing.T) {
	r := gin.New()
	r.Use(RequestTracing(quietLogger()))
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := serve(r, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 65))
	w = serve(r, req)
	assert.Len(t, w.Body.String(), 36, "oversized ids are replaced by a uuid")
}

func TestAuthRejectsMissingToken(t *testing.T) {
	r := gin.New()
	r.Use(Auth(nil))
	r.GET("/private", func(c *gin.Context) { c.String(http.StatusOK, "secret") })
	r.POST("/private", func(c *gin.Context) { c.String(http.StatusOK, "secret") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), repository.MsgInvalidToken)

	// The query fallback only applies to GET.
	w = serve(r, httptest.NewRequest(http.MethodPost, "/private?access_token=abc", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCacheControlAndMetrics(t *testing.T) {
	r := gin.New()
	r.Use(Metrics(), CacheControl("no-store"))
	r.GET("/things/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	hits := utils.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/things/:id", "200")
	misses := utils.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeHits, beforeMisses := testutil.ToFloat64(hits), testutil.ToFloat64(misses)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/things/7", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	serve(r, httptest.NewRequest(http.MethodGet, "/things/8", nil))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, beforeHits+2, testutil.ToFloat64(hits), "labelled by route, not by id")
	assert.Equal(t, beforeMisses+1, testutil.ToFloat64(misses))
	assert.Zero(t, testutil.ToFloat64(utils.ActiveRequests))
}
