// Package api provides the HTTP REST surface for ragdex.
//
// The API never touches the vector store's write path directly: uploads
// and deletes only change files in the watched folder, and the watcher
// applies the resulting filesystem events to the index. Query endpoints
// read through the retriever and agent.
//
// Endpoints:
//
//	GET    /health              liveness probe
//	GET    /api/files           list files in the watched folder
//	POST   /api/files           multipart upload into the watched folder
//	DELETE /api/files/{name}    remove a file from the watched folder
//	POST   /api/search          raw retrieval, formatted text block
//	POST   /api/query           agent answer, optionally forcing retrieval
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kestrel0/ragdex/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout caps graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to limit slow-client abuse.
	ReadHeaderTimeout = 10 * time.Second

	ReadTimeout  = 30 * time.Second
	WriteTimeout = 120 * time.Second
	IdleTimeout  = 120 * time.Second
)

// Server is the ragdex REST API server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	limiter     *ipLimiter
	corsOrigins []string

	health *HealthHandler
	files  *FilesHandler
	query  *QueryHandler
}

// Config carries server construction inputs.
type Config struct {
	// Folder is the watched folder uploads land in.
	Folder string

	// RateBurst is the per-client token bucket size. Zero disables
	// rate limiting.
	RateBurst int

	// CORSOrigins lists allowed origins; empty disables CORS headers.
	CORSOrigins []string
}

// NewServer creates the API server with all routes registered.
func NewServer(cfg Config, idx ChunkCounter, searcher Searcher, asker Asker, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:         mux,
		logger:      logger,
		corsOrigins: cfg.CORSOrigins,
		health:      NewHealthHandler(logger),
		files:       NewFilesHandler(cfg.Folder, idx, logger),
		query:       NewQueryHandler(searcher, asker, logger),
	}
	if cfg.RateBurst > 0 {
		s.limiter = newIPLimiter(cfg.RateBurst)
	}

	s.health.RegisterRoutes(mux)
	s.files.RegisterRoutes(mux)
	s.query.RegisterRoutes(mux)

	return s
}

// Handler returns the full middleware stack.
// Order: recovery → request ID → logging → CORS → rate limit → routes.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		s.recoveryMiddleware,
		requestIDMiddleware,
		s.loggingMiddleware,
	}
	if len(s.corsOrigins) > 0 {
		middlewares = append(middlewares, s.corsMiddleware)
	}
	if s.limiter != nil {
		middlewares = append(middlewares, s.rateLimitMiddleware)
	}
	return chain(s.mux, middlewares...)
}

// Run serves until ctx is canceled, then shuts down gracefully.
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
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("http server shutting down")
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

// chain applies middleware in order: first middleware wraps outermost.
func chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
