package apirouter

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports process health, e.g. *worker.HealthTracker.
type HealthChecker interface {
	IsHealthy() bool
	GetStatus() map[string]interface{}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func HealthzHandler(checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
			return
		}
		status := checker.GetStatus()
		if checker.IsHealthy() {
			c.JSON(http.StatusOK, status)
		} else {
			c.JSON(http.StatusServiceUnavailable, status)
		}
	}
}
