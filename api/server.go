// Package api exposes the document ingestion and question answering
// pipelines over HTTP REST.
//
// Endpoints:
//
//	GET  /health                              liveness probe
//	GET  /ready                               readiness probe (pings the database)
//	POST /api/courses/{courseID}/documents    upload a document, starts ingestion
//	GET  /api/courses/{courseID}/documents    list a course's documents
//	GET  /api/documents/{documentID}          ingestion status of one document
//	POST /api/courses/{courseID}/ask          answer a question from course materials
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: request logging and panic recovery
//   - ratelimit.go: per-IP rate limiting of the POST endpoints
//   - health.go: health check endpoints
//   - documents.go: upload, list, and status endpoints
//   - ask.go: question answering endpoint
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/campusmind/campusmind/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads can be large, so this is generous.
	ReadTimeout = 120 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Answer synthesis waits on a model round-trip.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Options tunes server-level behavior.
type Options struct {
	// RateLimitRPS is the per-IP token refill rate for POST endpoints.
	// Zero disables rate limiting.
	RateLimitRPS float64

	// RateLimitBurst is the per-IP bucket capacity.
	RateLimitBurst int

	// TrustProxy enables client IP extraction from X-Real-IP and
	// X-Forwarded-For. Only set behind a reverse proxy that overwrites
	// these headers.
	TrustProxy bool
}

// Server is the HTTP server for the REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	limiter    *rateLimiter
	trustProxy bool

	health    *HealthHandler
	documents *DocumentHandler
	ask       *AskHandler
}

// NewServer creates a server with all routes registered.
func NewServer(health *HealthHandler, documents *DocumentHandler, ask *AskHandler, logger log.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		logger:     logger,
		trustProxy: opts.TrustProxy,
		health:     health,
		documents:  documents,
		ask:        ask,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	}

	s.health.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	s.ask.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request logging → rate limit → handler,
// so rejected requests still show up in the request log.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{recovery(s.logger), requestLogging(s.logger)}
	if s.limiter != nil {
		middlewares = append(middlewares, rateLimit(s.limiter, s.trustProxy, s.logger))
	}
	return chain(s.mux, middlewares...)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
