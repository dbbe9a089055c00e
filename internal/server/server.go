// Package server exposes reports, recommendations and history over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	pghealthmiddleware "github.com/ppiankov/pghealth/internal/server/middleware"
)

const (
	DefaultAddr            = ":8767"
	defaultShutdownTimeout = 10 * time.Second
)

type WebAPI struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
	config Config
}

// Dependencies are the services behind the API. History may be nil when no
// history store is available; the history routes then answer 503, as they do
// when History reports ErrNoHistory.
type Dependencies struct {
	Inspector Inspector
	Advisor   Advisor
	History   HistoryReader
	Logger    zerolog.Logger
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Dependencies    Dependencies
}

// ConfigureRouter builds the chi router with logging and panic recovery.
func ConfigureRouter(config Config) *chi.Mux {
	h := newHandler(config.Dependencies)
	logger := config.Dependencies.Logger

	router := chi.NewRouter()
	router.Use(pghealthmiddleware.Logger(&logger))
	router.Use(middleware.Recoverer)
	router.Use(h.healthStatus)

	router.Get("/healthz", h.Healthz)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/report", h.GetReport)
		r.Get("/recommendations", h.ListRecommendations)
		r.Get("/history", h.ListHistory)
		r.Get("/history/{database}/metrics", h.ListMetrics)
		r.Get("/history/{database}/metrics/{metric}", h.GetMetric)
	})

	return router
}

func NewWebAPI(config Config) *WebAPI {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaultShutdownTimeout
	}

	router := ConfigureRouter(config)
	logger := config.Dependencies.Logger
	return &WebAPI{
		router: router,
		logger: &logger,
		config: config,
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the configured router.
func (w *WebAPI) Handler() http.Handler {
	return w.router
}

// Start serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the listener fails.
func (w *WebAPI) Start(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	go func() {
		w.logger.Info().Str("addr", w.server.Addr).Msg("starting server")
		serverErrors <- w.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-shutdown:
	case <-ctx.Done():
	}

	w.logger.Info().Msg("shutdown initiated")

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
	defer cancel()

	err := w.server.Shutdown(shutdownCtx)
	if err != nil {
		w.logger.Error().Err(err).Msg("graceful shutdown failed")
		err = w.server.Close()
	}
	return err
}
