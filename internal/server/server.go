// Package server provides the HTTP server and routing for Wheelhouse.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/mleventi/wheelhouse/internal/config"
	"github.com/mleventi/wheelhouse/internal/database"
	"github.com/mleventi/wheelhouse/internal/di"
)

// Config holds server configuration.
type Config struct {
	Log         zerolog.Logger
	ConfigDB    *database.DB
	PortfolioDB *database.DB
	LedgerDB    *database.DB
	AdvisoryDB  *database.DB
	Config      *config.Config
	Port        int
	DevMode     bool
	Container   *di.Container
}

// Server is the HTTP front door for advisory runs, reconciliation, portfolio
// state, and live notifications.
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	configDB       *database.DB
	portfolioDB    *database.DB
	ledgerDB       *database.DB
	advisoryDB     *database.DB
	cfg            *config.Config
	container      *di.Container
	systemHandlers *SystemHandlers
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		configDB:    cfg.ConfigDB,
		portfolioDB: cfg.PortfolioDB,
		ledgerDB:    cfg.LedgerDB,
		advisoryDB:  cfg.AdvisoryDB,
		cfg:         cfg.Config,
		container:   cfg.Container,
	}

	s.systemHandlers = NewSystemHandlers(cfg.Log, cfg.Config.DataDir, cfg.Container.Databases)

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Websocket must bypass the write timeout middleware chain would add.
		r.Get("/notifications/ws", s.container.NotifyHub.ServeHTTP)

		r.Route("/advisory", func(r chi.Router) {
			r.Post("/run", s.handleAdvisoryRun)
			r.Get("/recommendations", s.handleListRecommendations)
			r.Get("/recommendations/latest", s.handleLatestRecommendations)
			r.Get("/recommendations/{id}", s.handleGetRecommendation)
			r.Post("/recommendations/{id}/status", s.handleUpdateRecommendationStatus)
			r.Post("/recommendations/{id}/exclude", s.handleExcludeRecommendation)
			r.Get("/strategies", s.handleListStrategies)
			r.Put("/strategies/{type}", s.handleUpsertStrategyConfig)
			r.Get("/throttle/{strategy}", s.handleThrottleStatus)
		})

		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/run", s.handleReconcileRun)
			r.Get("/matches", s.handleListMatches)
			r.Post("/matches/{id}/review", s.handleReviewMatch)
			r.Post("/matches/{id}/exclude", s.handleExcludeMatch)
			r.Get("/epochs", s.handleEpochs)
			r.Get("/algorithm", s.handleAlgorithmChanges)
			r.Post("/algorithm", s.handleRecordAlgorithmChange)
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.handleListExecutions)
			r.Post("/", s.handleCreateExecution)
		})

		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/positions", s.handleListPositions)
			r.Put("/positions", s.handleUpsertPosition)
			r.Get("/options", s.handleListOptionPositions)
			r.Put("/options", s.handleUpsertOptionPosition)
			r.Delete("/options/{id}", s.handleCloseOptionPosition)
			r.Put("/cash", s.handleSetCashBalance)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Get("/database/stats", s.systemHandlers.HandleDatabaseStats)
			r.Get("/disk", s.systemHandlers.HandleDiskUsage)
			r.Post("/backup", s.handleTriggerBackup)
			r.Get("/backups", s.handleListBackups)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
