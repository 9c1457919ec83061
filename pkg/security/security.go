package security

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"knowledge_graph_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	allowedHeaders = "Authorization, Content-Type, Accept, Origin, X-Requested-With"
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// CORS 仅回显白名单中的 Origin；"*" 放行任意来源但不携带凭证
func CORS(allowedOrigins []string, maxAge time.Duration) gin.HandlerFunc {
	originSet := make(map[string]bool, len(allowedOrigins))
	wildcard := false
	for _, o := range allowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		originSet[strings.TrimRight(o, "/")] = true
	}
	maxAgeSeconds := strconv.Itoa(int(maxAge.Seconds()))

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		switch {
		case origin != "" && originSet[origin]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case origin != "" && wildcard:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		if c.Request.Method == "OPTIONS" {
			h.Set("Access-Control-Allow-Headers", allowedHeaders)
			h.Set("Access-Control-Allow-Methods", allowedMethods)
			if maxAge > 0 {
				h.Set("Access-Control-Max-Age", maxAgeSeconds)
			}
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// Secure 掌握度与推荐数据按用户区分，API 响应禁止缓存
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "no-store")
		}
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}

// KeyFunc 决定限流桶的归属
type KeyFunc func(c *gin.Context) string

func ClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// UserOrIP 需挂在 AuthMiddleware 之后，未认证时退回按 IP
func UserOrIP(c *gin.Context) string {
	if user := util.GetUserFromContext(c); user != nil && user.UserID != "" {
		return "user:" + user.UserID
	}
	return ClientIP(c)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter 令牌桶限流，桶在闲置超过 3 个窗口后回收
type Limiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	every    rate.Limit
	burst    int
	window   time.Duration
	key      KeyFunc
	now      func() time.Time
}

func NewLimiter(maxRequests int, window time.Duration, key KeyFunc) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	if key == nil {
		key = ClientIP
	}
	return &Limiter{
		visitors: make(map[string]*visitor),
		every:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		window:   window,
		key:      key,
		now:      time.Now,
	}
}

// Allow 返回是否放行以及拒绝时建议的重试等待
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	r := v.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep 回收闲置的桶
func (l *Limiter) Sweep() int {
	expiry := l.window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > expiry {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := l.Allow(l.key(c))
		if !ok {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			util.TooManyRequests(c)
			return
		}
		c.Next()
	}
}

// RateLimiter 创建限流中间件并在后台每分钟回收闲置桶
func RateLimiter(maxRequests int, window time.Duration, key KeyFunc) gin.HandlerFunc {
	l := NewLimiter(maxRequests, window, key)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			l.Sweep()
		}
	}()
	return l.Middleware()
}
