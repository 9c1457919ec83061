package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"knowledge_graph_backend/internal/model"
	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(maxRequests int, window time.Duration) (*Limiter, *time.Time) {
	now := time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
	l := NewLimiter(maxRequests, window, ClientIP)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterAllow(t *testing.T) {
	l, now := newTestLimiter(2, time.Minute)

	ok, _ := l.Allow("user:a")
	assert.True(t, ok)
	ok, _ = l.Allow("user:a")
	assert.True(t, ok)

	ok, retry := l.Allow("user:a")
	assert.False(t, ok)
	assert.InDelta(t, 30, retry.Seconds(), 0.001)

	// 不同用户互不影响
	ok, _ = l.Allow("user:b")
	assert.True(t, ok)

	*now = now.Add(30 * time.Second)
	ok, _ = l.Allow("user:a")
	assert.True(t, ok)
}

func TestLimiterSweep(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)
	l.Allow("ip:1")
	*now = now.Add(2 * time.Minute)
	l.Allow("ip:2")

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, l.Sweep())
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "ip:2")
}

func TestLimiterMiddlewareKeysByUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l, _ := newTestLimiter(1, time.Hour)
	l.key = UserOrIP

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id != "" {
			c.Set("user", &util.Claims{UserID: id, Role: model.Instructor})
		}
		c.Next()
	})
	r.POST("/generate", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusAccepted, call("instructor-1").Code)
	denied := call("instructor-1")
	assert.Equal(t, http.StatusTooManyRequests, denied.Code)
	assert.Equal(t, "3600", denied.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"too many requests"}`, denied.Body.String())

	// 同一 IP 的其他用户和匿名请求各自计数
	assert.Equal(t, http.StatusAccepted, call("instructor-2").Code)
	assert.Equal(t, http.StatusAccepted, call("").Code)
	assert.Equal(t, http.StatusTooManyRequests, call("").Code)
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name        string
		allowed     []string
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCreds   string
		wantMaxAge  string
		wantMethods bool
	}{
		{"allowed origin", []string{"http://localhost:5173/"}, http.MethodGet, "http://localhost:5173", http.StatusOK, "http://localhost:5173", "true", "", false},
		{"unknown origin", []string{"http://localhost:5173"}, http.MethodGet, "http://evil.test", http.StatusOK, "", "", "", false},
		{"wildcard without credentials", []string{"*"}, http.MethodGet, "http://any.test", http.StatusOK, "*", "", "", false},
		{"preflight", []string{"http://localhost:5173"}, http.MethodOptions, "http://localhost:5173", http.StatusNoContent, "http://localhost:5173", "true", "43200", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORS(tt.allowed, 12*time.Hour))
			r.GET("/api/concepts", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/api/concepts", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMaxAge, w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods") != "")
			assert.Equal(t, "Origin", w.Header().Get("Vary"))
		})
	}
}

func TestSecureDisablesCachingForAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Secure())
	r.GET("/api/mastery", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	for path, want := range map[string]string{"/api/mastery": "no-store", "/metrics": ""} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Header().Get("Cache-Control"), path)
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	}
}
