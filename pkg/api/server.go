package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/castflow/castflow/pkg/pipeline"
)

// maxBodyBytes caps the request body size. Graph models are text JSON;
// anything past this is almost certainly a mistake or abuse.
const maxBodyBytes = 8 << 20 // 8 MiB

// shutdownTimeout bounds how long graceful shutdown waits for in-flight
// requests after the context is cancelled.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP front end of the optimization pipeline. It holds no
// per-request state; a single Server instance handles concurrent requests.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	router chi.Router
}

// NewServer creates a server around the given runner. A nil logger falls
// back to the package default.
func NewServer(runner *pipeline.Runner, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{runner: runner, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
	})
	return r
}

// Handler returns the root HTTP handler, useful for tests and for mounting
// the API under a larger mux.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully. It returns nil on a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("api shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
