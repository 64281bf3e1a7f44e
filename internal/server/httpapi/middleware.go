package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"task-tracker/backend/internal/audit"
	"task-tracker/backend/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestID reuses an inbound X-Request-ID or assigns a new one and echoes it on the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestInfo tags the request context so auth events carry source "http" and the client address.
func requestInfo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := audit.WithRequestInfo(c.Request.Context(), audit.RequestInfo{Source: "http", ClientIP: c.ClientIP()})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requestLogger writes one line per request after it completes.
func requestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(requestIDHeader),
		}
		if len(c.Errors) > 0 {
			args = append(args, "error", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			log.Error(c.Request.Context(), "http request", args...)
		case status >= 400:
			log.Warn(c.Request.Context(), "http request", args...)
		default:
			log.Info(c.Request.Context(), "http request", args...)
		}
	}
}
