package api

import (
	"net/http"
	"time"

	"github.com/campusmind/campusmind/internal/log"
)

// statusRecorder captures the status code a handler writes so the request
// log carries the outcome.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestLogging logs every request with the identifiers this service
// routes on. The mux sets path values on the request during dispatch, so
// course and document IDs are available here after the handler returns.
func requestLogging(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
			}
			if courseID := r.PathValue("courseID"); courseID != "" {
				attrs = append(attrs, "course_id", courseID)
			}
			if documentID := r.PathValue("documentID"); documentID != "" {
				attrs = append(attrs, "document_id", documentID)
			}
			logger.Debug("http request", attrs...)
		})
	}
}

// recovery converts handler panics into a JSON 500 so one bad request
// cannot take down the server.
func recovery(logger log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					logger.Error("panic recovered",
						"panic", v,
						"method", r.Method,
						"path", r.URL.Path)
					writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware in order: the first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
