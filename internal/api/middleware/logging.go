package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ghetolay/WowBot/internal/logger"
)

// RequestIDHeader carries the id of a request in both directions.
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware assigns a request id and logs every request.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()
		// [method] path?query - status (latency) id
		if status >= 500 {
			logger.Errorf("[api] [%s] %s - %d (%v) %s", c.Request.Method, path, status, time.Since(start), id)
			return
		}
		logger.Debugf("[api] [%s] %s - %d (%v) %s", c.Request.Method, path, status, time.Since(start), id)
	}
}
