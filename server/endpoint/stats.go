package endpoint

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/autoquant/alphakit/assets"
	"github.com/autoquant/alphakit/margin"
	"github.com/autoquant/alphakit/resilience"
)

// StatsSources collects the components whose runtime counters are exposed
// on /stats. Nil fields are simply omitted from the response.
type StatsSources struct {
	Breakers []*resilience.CircuitBreaker
	Monitor  *margin.Monitor
	Injector resilience.Injector
	Registry *assets.Registry
}

// Stats returns a handler that reports resilience and margin counters for
// dashboards. Unlike /metrics this reports domain state, not process state.
func Stats(sources StatsSources) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if len(sources.Breakers) > 0 {
			breakers := make([]gin.H, 0, len(sources.Breakers))
			for _, cb := range sources.Breakers {
				counts := cb.Counts()
				b := gin.H{
					"name":                 cb.Name(),
					"state":                counts.State.String(),
					"consecutive_failures": counts.ConsecutiveFailures,
					"trips":                counts.Trips,
					"probes_in_flight":     counts.ProbesInFlight,
				}
				if !counts.LastTrip.IsZero() {
					b["last_trip"] = counts.LastTrip.UTC().Format(time.RFC3339)
				}
				breakers = append(breakers, b)
			}
			body["breakers"] = breakers
		}

		if sources.Monitor != nil {
			m := gin.H{
				"level": sources.Monitor.Level().String(),
			}
			if snap, ok := sources.Monitor.Last(); ok {
				m["equity_ratio"] = snap.EquityRatio()
				m["observed_at"] = snap.Timestamp.UTC().Format(time.RFC3339)
			}
			body["margin"] = m
		}

		if sources.Registry != nil {
			stats := sources.Registry.Stats()
			body["asset_cache"] = gin.H{
				"hits":     stats.Hits,
				"misses":   stats.Misses,
				"hit_rate": stats.HitRate,
				"entries":  stats.Entries,
			}
		}

		if sources.Injector != nil {
			inj := gin.H{"calls": sources.Injector.CallCount()}
			if ri, ok := sources.Injector.(*resilience.RandomInjector); ok {
				inj["injected"] = ri.InjectedCount()
			}
			body["fault_injector"] = inj
		}

		c.JSON(http.StatusOK, body)
	}
}
