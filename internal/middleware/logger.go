package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"ecos/internal/pkg/apperr"
	"ecos/internal/pkg/logger"
	"ecos/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// RequestID reuses the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

// RequestLogger logs every request and recovers from panics. Errors attached
// with c.Error are logged with the request; 5xx responses at error level.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				log.Error("panic",
					append(requestFields(c, start), "error", fmt.Sprint(recovered), "stack", string(debug.Stack()))...)
				response.Abort(c, apperr.Internal("internal server error", nil))
				return
			}

			fields := requestFields(c, start)
			if len(c.Errors) > 0 {
				fields = append(fields, "error", c.Errors.String())
			}
			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				log.Error("request failed", fields...)
			case len(c.Errors) > 0:
				log.Warn("request rejected", fields...)
			default:
				log.Info("request", fields...)
			}
		}()

		c.Next()
	}
}

func requestFields(c *gin.Context, start time.Time) []any {
	fields := []any{
		"status", c.Writer.Status(),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"query", c.Request.URL.RawQuery,
		"client_ip", c.ClientIP(),
		"request_id", c.GetString(ctxRequestID),
		"latency", time.Since(start),
	}
	if id := UserID(c); id != uuid.Nil {
		fields = append(fields, "user_id", id, "role", c.GetString(ctxRole))
	}
	return fields
}
