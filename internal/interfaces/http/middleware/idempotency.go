package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	domainerrors "keyforge.backend/internal/domain/errors"
	"keyforge.backend/internal/interfaces/http/response"
	"keyforge.backend/pkg/logger"
	"keyforge.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	idempotencyPrefix  = "idempotency:"
	processingSentinel = "processing"
)

var (
	redisGet   = redis.Get
	redisSet   = redis.Set
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

type storedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyMiddleware replays the stored response when a caller retries a
// request with the same Idempotency-Key. It must run after AuthMiddleware so
// keys are scoped per caller. Without Redis it lets requests through.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		owner := "anonymous"
		if p, ok := GetPrincipal(c); ok {
			owner = p.UserID.String()
		}
		storageKey := idempotencyPrefix + owner + ":" + c.FullPath() + ":" + key
		ctx := c.Request.Context()

		val, err := redisGet(ctx, storageKey)
		switch {
		case err == nil:
			replay(c, val)
			return
		case !errors.Is(err, goredis.Nil):
			logger.Warn(ctx, "idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		acquired, err := redisSetNX(ctx, storageKey, processingSentinel, LockDuration)
		if err != nil || !acquired {
			response.ErrorWithError(c, http.StatusConflict, domainerrors.CodeIdempotency, "request already in progress")
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			// failed requests may be retried with the same key
			_ = redisDel(ctx, storageKey)
			return
		}
		var body json.RawMessage
		if w.body.Len() > 0 {
			body = w.body.Bytes()
		}
		stored, err := json.Marshal(storedResponse{Status: status, Body: body})
		if err != nil {
			_ = redisDel(ctx, storageKey)
			return
		}
		if err := redisSet(ctx, storageKey, stored, RetentionDuration); err != nil {
			logger.Warn(ctx, "failed to store idempotent response", zap.Error(err))
		}
	}
}

func replay(c *gin.Context, val string) {
	if val == processingSentinel {
		response.ErrorWithError(c, http.StatusConflict, domainerrors.CodeIdempotency, "request already in progress")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		response.Error(c, domainerrors.InternalError(err))
		return
	}
	c.Header("X-Idempotency-Hit", "true")
	if len(stored.Body) == 0 || string(stored.Body) == "null" {
		c.AbortWithStatus(stored.Status)
		return
	}
	c.Data(stored.Status, "application/json; charset=utf-8", stored.Body)
	c.Abort()
}
