package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoquant/alphakit/version"
)

// Liveness answers orchestrator liveness probes. Downstream health is
// deliberately excluded: a tripped broker breaker is not a reason to
// restart the process.
func Liveness(serviceName string) gin.HandlerFunc {
	build := version.Current().Short()
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"service":   serviceName,
			"build":     build,
			"uptime":    time.Since(startTime).String(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
