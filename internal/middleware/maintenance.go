package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"epistolary-lite/internal/model"
	"epistolary-lite/internal/version"
)

// Maintenance answers every request with 503 and a maintenance status reply while
// enabled. Clients treat the reply to /status as a successful status check.
func Maintenance(enabled bool, started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, model.StatusReply{
			Status:  "maintenance",
			Uptime:  time.Since(started).String(),
			Version: version.Version(),
		})
	}
}
