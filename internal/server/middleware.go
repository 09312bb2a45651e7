package server

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/zatobox/invoice-ocr/internal/auth"
	"github.com/zatobox/invoice-ocr/internal/common"
)

const requestIDKey = "request_id"

// RequestID stores a request id in the gin and request contexts and echoes it
// in X-Request-ID. A client-supplied id is kept.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDKey, reqID)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// Caller resolves the rate-limit key from the Authorization header once per request.
func Caller(ids CallerIdentifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		key := auth.Anonymous
		if ids != nil {
			key = ids.CallerKey(header)
		} else if t := auth.BearerToken(header); t != "" {
			key = t
		}
		c.Request = c.Request.WithContext(common.WithCallerKey(c.Request.Context(), key))
		c.Next()
	}
}

// AccessLog writes one http.request event per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"req_id", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		}
		if err := c.Errors.Last(); err != nil {
			attrs = append(attrs, "error", err.Error())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("http.request", attrs...)
			return
		}
		logger.Info("http.request", attrs...)
	}
}

// Recovery turns panics into a 500 with the usual error body.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("http.panic", "req_id", c.GetString(requestIDKey), "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Error: internal server error"})
	})
}

// Throttle applies a process-wide token bucket. rps <= 0 disables it.
func Throttle(rps float64, burst int, skip ...string) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := skipped[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		if !limiter.Allow() {
			abortWithError(c, common.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	if wait := common.RetryAfterOf(err); wait > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
	}
	c.AbortWithStatusJSON(common.HTTPStatus(err), gin.H{"detail": common.PublicMessage(err)})
}
