package apirouter

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/dbcv/platform/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a panic into 500 {"detail":"Internal Server
// Error"}. The stack is logged, never sent to the client.
func RecoveryMiddleware(logger *logging.Logger, policy CORSPolicy) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		err, ok := recovered.(error)
		if !ok {
			err = fmt.Errorf("%v", recovered)
		}

		logger.Ctx(c.Request.Context()).Error("unhandled error",
			zap.Error(err),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.ByteString("stack", debug.Stack()),
		)

		policy.Decorate(c)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal Server Error"})
	})
}
