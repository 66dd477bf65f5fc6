package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	_ "github.com/akolanti/FinBot/cmd/api/docs"
	"github.com/akolanti/FinBot/internal/config"
	"github.com/akolanti/FinBot/internal/handlers"
	"github.com/akolanti/FinBot/internal/middleware"
	"github.com/akolanti/FinBot/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	logger          *logger_i.Logger
}

// NewRouter mounts the API, the MCP endpoint and the operational routes.
func NewRouter(cfg config.ServerConfig, h *handlers.Handler, mcpHandler http.Handler) chi.Router {
	m := middleware.New(cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(m.Trace)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(m.Metrics)

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger/index.html", http.StatusMovedPermanently)
	})
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Group(func(r chi.Router) {
		r.Use(m.RateLimit)
		r.Post("/chat", h.Chat)
		r.Post("/ingest", h.PostIngest)
		r.Get("/status/{id}", h.GetStatus)
	})
	if mcpHandler != nil {
		r.With(m.MCPRateLimit).Handle("/mcp", mcpHandler)
	}
	return r
}

func New(cfg config.Config, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.Server.ListenAddr,
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
		},
		shutdownTimeout: cfg.ShutdownTimeout(),
		logger:          logger_i.NewLogger("Server"),
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server is listening", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Server is shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.http.SetKeepAlivesEnabled(false)
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Could not shutdown gracefully", "error", err)
		return err
	}
	return <-errCh
}
