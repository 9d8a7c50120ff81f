package middleware

import "net/http"

// statusRecorder captures the response status for the logging and metrics
// middleware while delegating everything else. Flush and Unwrap pass through
// so streaming responses and http.ResponseController keep working behind
// the wrapper.
type statusRecorder struct {
	http.ResponseWriter
	code  int
	wrote bool
}

func recordStatus(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, code: http.StatusOK}
}

// WriteHeader records the first status code written; later calls delegate
// without changing the recorded code, matching net/http semantics.
func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.code = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

// Flush implements http.Flusher for streaming handlers.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
