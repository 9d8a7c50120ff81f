package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/autoquant/alphakit/logger"
)

// quietPaths are polled by orchestrators and dashboards; logging every hit
// buries the order flow in noise.
var quietPaths = map[string]struct{}{
	"/health":  {},
	"/healthz": {},
	"/alive":   {},
	"/ready":   {},
	"/metrics": {},
}

// RequestLogger returns middleware that logs every request with method,
// path, status code, and duration. Polling endpoints are served but not
// logged.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isQuietPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := recordStatus(w)
			next.ServeHTTP(rec, r)

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.code,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if id := r.Header.Get(HeaderRequestID); id != "" {
				fields["request_id"] = id
			}

			logByStatus(log, fields, rec.code)
		})
	}
}

// isQuietPath matches the polling endpoints directly and as the final
// segment of versioned API paths (/api/v1/health).
func isQuietPath(path string) bool {
	if _, ok := quietPaths[path]; ok {
		return true
	}
	if strings.HasPrefix(path, "/api") {
		if i := strings.LastIndex(path, "/"); i >= 0 {
			_, ok := quietPaths[path[i:]]
			return ok
		}
	}
	return false
}

// logByStatus picks the log level from the status code: server errors are
// errors, client errors are warnings, everything else is debug noise. A nil
// log falls back to the global logger.
func logByStatus(log *logger.Logger, fields map[string]interface{}, status int) {
	logErr := logger.Error
	logWarn := logger.Warn
	logDebug := logger.Debug
	if log != nil {
		logErr = log.Error
		logWarn = log.Warn
		logDebug = log.Debug
	}

	switch {
	case status >= http.StatusInternalServerError:
		logErr("Request completed", fields)
	case status >= http.StatusBadRequest:
		logWarn("Request completed", fields)
	default:
		logDebug("Request completed", fields)
	}
}
