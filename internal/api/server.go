package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/taskflow/internal/backend"
	"github.com/seantiz/taskflow/internal/engine"
	"github.com/seantiz/taskflow/internal/store"
)

// Version is reported by the status endpoint.
const Version = "1.0.0"

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Deps are the collaborators the HTTP handlers use.
type Deps struct {
	Pipelines    store.PipelineStore
	Executions   store.ExecutionStore
	Engine       *engine.Engine
	Capabilities backend.CapabilityLister
	Policies     *backend.Registry
	ActivePolicy string
	Tokens       *TokenSet
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router       *chi.Mux
	pipelines    store.PipelineStore
	executions   store.ExecutionStore
	engine       *engine.Engine
	capabilities backend.CapabilityLister
	policies     *backend.Registry
	activePolicy string
	tokens       *TokenSet
	logger       *slog.Logger
	addr         string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger) *Server {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = NewTokenSet()
	}
	srv := &Server{
		router:       chi.NewRouter(),
		pipelines:    deps.Pipelines,
		executions:   deps.Executions,
		engine:       deps.Engine,
		capabilities: deps.Capabilities,
		policies:     deps.Policies,
		activePolicy: deps.ActivePolicy,
		tokens:       tokens,
		logger:       logger,
		addr:         addr,
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(metricsMiddleware)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/post", s.handlePost)
			r.Get("/status", s.handleStatus)
			r.Get("/stats", s.handleGetStats)
			r.Get("/policies", s.handleListPolicies)

			r.Route("/executions", func(r chi.Router) {
				r.Post("/", s.handleSubmitExecution)
				r.Get("/", s.handleListExecutions)
				r.Get("/{id}", s.handleGetExecution)
				r.Get("/{id}/events", s.handleStreamEvents)
				r.Get("/{id}/events/history", s.handleGetEventHistory)
			})

			r.Route("/pipelines", func(r chi.Router) {
				r.Get("/", s.handleListPipelines)
				r.Put("/{name}", s.handlePutPipeline)
				r.Get("/{name}", s.handleGetPipeline)
				r.Delete("/{name}", s.handleDeletePipeline)
			})
		})
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// Asynchronous executions still running at shutdown are waited for.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.engine.Wait()

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
