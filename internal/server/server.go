package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yallaspeak/syncd/internal/server/handlers"
	"github.com/yallaspeak/syncd/internal/server/middleware"
	"github.com/yallaspeak/syncd/internal/syncer"
)

// Config содержит настройки HTTP-сервера
type Config struct {
	Addr            string
	Version         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	JWTSecret       []byte
}

// Server оборачивает http.Server с роутингом и graceful shutdown
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	shutdown   time.Duration
}

// New создает сервер с полностью настроенным роутером
func New(logger *slog.Logger, cfg Config, engine *syncer.Engine) *Server {
	router := NewRouter(logger, cfg, engine)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger:   logger,
		shutdown: cfg.ShutdownTimeout,
	}
}

// NewRouter собирает chi-роутер со всеми эндпоинтами.
// /health открыт, все /api/v1 маршруты за JWT auth.
func NewRouter(logger *slog.Logger, cfg Config, engine *syncer.Engine) chi.Router {
	jwtCfg := handlers.JWTConfig{Secret: cfg.JWTSecret}

	healthHandler := handlers.NewHealthHandler(logger, cfg.Version)
	syncHandler := handlers.NewSyncHandler(logger, engine)
	statusHandler := handlers.NewStatusHandler(logger, engine)
	queueHandler := handlers.NewQueueHandler(logger, engine)
	transferHandler := handlers.NewTransferHandler(logger, engine)

	r := chi.NewRouter()

	r.Use(middleware.RecoveryMiddleware(logger))
	r.Use(middleware.LoggingWithSkip(logger, []string{"/health"}))

	r.Get("/health", healthHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(logger, jwtCfg))

		r.Route("/sync", func(r chi.Router) {
			r.Post("/", syncHandler.Sync)
			r.Get("/", syncHandler.Changes)
			r.Get("/status", statusHandler.Status)
			r.Post("/queue", queueHandler.Enqueue)
			r.Post("/queue/process", queueHandler.Process)
			r.Get("/export", transferHandler.Export)
			r.Post("/import", transferHandler.Import)
		})
	})

	return r
}

// Start запускает сервер и блокируется до ошибки или остановки
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown выполняет graceful shutdown с таймаутом
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.shutdown
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
