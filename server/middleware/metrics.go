package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/autoquant/alphakit/observability"
)

// RequestMetrics returns middleware that records every request on the
// shared instrument set: an in-flight gauge plus per-route counters and a
// latency histogram. A nil metrics disables recording without changing the
// chain shape.
func RequestMetrics(m *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.RecordRequestStart(r.Context())

			rec := recordStatus(w)
			next.ServeHTTP(rec, r)

			m.RecordRequestEnd(r.Context(), r.Method, r.URL.Path, statusClass(rec.code), time.Since(start))
		})
	}
}

// statusClass buckets a status code (2xx, 4xx, ...) so metric cardinality
// stays bounded.
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
