package apirouter

import (
	"time"

	"github.com/dbcv/platform/internal/idgen"
	"github.com/dbcv/platform/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

func LoggerMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = idgen.RequestID()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		logger := logger.Ctx(c.Request.Context())
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}

		if len(c.Errors) > 0 {
			logger.Error("request failed", append(fields, zap.Strings("errors", c.Errors.Errors()))...)
			return
		}
		logger.Info("request completed", fields...)
	}
}
