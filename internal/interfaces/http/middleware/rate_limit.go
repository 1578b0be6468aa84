package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/pkg/logger"
	redispkg "keyforge.backend/pkg/redis"
)

// Limiter decides whether one more hit for key is allowed
type Limiter interface {
	Allow(ctx context.Context, key string) (redispkg.Decision, error)
}

// RateLimitMiddleware limits requests per client IP. When the backing store
// is unavailable requests are let through.
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		decision, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !decision.Allowed {
			seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			response.ErrorWithError(c, http.StatusTooManyRequests, domainerrors.CodeRateLimited, "too many requests")
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Next()
	}
}
