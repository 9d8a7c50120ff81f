package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics reports process runtime stats: goroutines, heap usage, and GC
// activity. Trading counters live on /stats; this endpoint is about the
// process itself.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"uptime":     time.Since(startTime).String(),
			"goroutines": runtime.NumGoroutine(),
			"memory": gin.H{
				"heap_alloc_mb":  toMB(m.HeapAlloc),
				"total_alloc_mb": toMB(m.TotalAlloc),
				"sys_mb":         toMB(m.Sys),
				"gc_runs":        m.NumGC,
				"gc_pause_ms":    float64(m.PauseTotalNs) / float64(time.Millisecond),
			},
		})
	}
}

func toMB(b uint64) uint64 {
	return b >> 20
}
