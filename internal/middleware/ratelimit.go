package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
	"github.com/noah-isme/lms-attendance-api/pkg/response"
)

// WindowCounter counts hits per key inside a fixed window.
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RateLimiter caps how often one user may hit a route within a minute.
type RateLimiter struct {
	counter WindowCounter
	limit   int
	window  time.Duration
	prefix  string
	logger  *zap.Logger
	now     func() time.Time
}

// NewRateLimiter builds a per-user fixed window limiter. A limit of zero or
// less disables it.
func NewRateLimiter(counter WindowCounter, prefix string, perMinute int, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{counter: counter, limit: perMinute, window: time.Minute, prefix: prefix, logger: logger, now: time.Now}
}

// Middleware must run after JWT; anonymous requests are not limited.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.limit <= 0 || l.counter == nil {
			c.Next()
			return
		}
		value, _ := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !ok || claims == nil || claims.UserID == "" {
			c.Next()
			return
		}

		bucket := l.now().Unix() / int64(l.window.Seconds())
		key := l.prefix + ":" + claims.UserID + ":" + strconv.FormatInt(bucket, 10)
		count, err := l.counter.IncrWindow(c.Request.Context(), key, l.window)
		if err != nil {
			// Redis trouble must not block attendance.
			l.logger.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if count > int64(l.limit) {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			response.Error(c, appErrors.ErrTooManyChecks)
			c.Abort()
			return
		}
		c.Next()
	}
}
