// Package server exposes family spaces over a JSON HTTP API.
//
//	GET  /healthz
//	GET  /api/v1/spaces
//	PUT  /api/v1/spaces/{spaceID}/snapshot
//	GET  /api/v1/spaces/{spaceID}/snapshot
//	GET  /api/v1/spaces/{spaceID}/layout
//	GET  /api/v1/spaces/{spaceID}/validate
//	POST /api/v1/spaces/{spaceID}/people
//	GET  /api/v1/spaces/{spaceID}/people/{personID}/relatives
//	POST /api/v1/spaces/{spaceID}/people/{personID}/activate
//	POST /api/v1/spaces/{spaceID}/relationships
//
// Errors are JSON objects {"error": message, "code": CODE}.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/knitfamily/knit/pkg/pipeline"
	"github.com/knitfamily/knit/pkg/store"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 8 << 20

// Options configures a Server.
type Options struct {
	Addr string
	// RateLimit is requests per second per client; zero disables limiting.
	RateLimit    float64
	RateBurst    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
	// Layout holds the default spacing for layout requests.
	Layout pipeline.Options
}

// Server serves the HTTP API.
type Server struct {
	store  store.Store
	runner *pipeline.Runner
	logger *log.Logger
	opts   Options
	router chi.Router
}

// New creates a server backed by st. The runner's store is set to st.
func New(st store.Store, runner *pipeline.Runner, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if runner == nil {
		runner = pipeline.NewRunner(nil, nil, st, logger)
	}
	runner.Store = st
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &Server{store: st, runner: runner, logger: logger, opts: opts}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.opts.RateLimit > 0 {
		r.Use(NewRateLimiter(s.opts.RateLimit, s.opts.RateBurst).Middleware)
	}

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1/spaces", func(r chi.Router) {
		r.Get("/", s.handleListSpaces)
		r.Route("/{spaceID}", func(r chi.Router) {
			r.Put("/snapshot", s.handlePutSnapshot)
			r.Get("/snapshot", s.handleGetSnapshot)
			r.Get("/layout", s.handleLayout)
			r.Get("/validate", s.handleValidate)
			r.Post("/people", s.handleCreatePerson)
			r.Get("/people/{personID}/relatives", s.handleRelatives)
			r.Post("/people/{personID}/activate", s.handleActivate)
			r.Post("/relationships", s.handleCreateRelationship)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: "no such route", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
