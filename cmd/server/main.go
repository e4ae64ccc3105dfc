package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/openradlabs/dicom-transfer/internal/config"
	"github.com/openradlabs/dicom-transfer/internal/database"
	"github.com/openradlabs/dicom-transfer/internal/handlers"
	"github.com/openradlabs/dicom-transfer/internal/middleware"
	"github.com/openradlabs/dicom-transfer/internal/repository"
	"github.com/openradlabs/dicom-transfer/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log.Info().Msg("Starting DICOM transfer service")

	// Connect to database
	if err := database.Connect(cfg.Database); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize repositories
	nodeRepo := repository.NewNodeRepository()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	nodeHandler := handlers.NewNodeHandler(nodeRepo, cfg.CallingAETitle)
	queryHandler := handlers.NewQueryHandler(nodeRepo, cfg.CallingAETitle)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// Management and query API
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/nodes", nodeHandler.CreateNode)
		r.Get("/nodes", nodeHandler.ListNodes)
		r.Get("/nodes/{id}", nodeHandler.GetNode)
		r.Put("/nodes/{id}", nodeHandler.UpdateNode)
		r.Delete("/nodes/{id}", nodeHandler.DeleteNode)
		r.Post("/nodes/{id}/test", nodeHandler.TestConnection)

		r.Get("/nodes/{id}/patients", queryHandler.SearchPatients)
		r.Get("/nodes/{id}/studies", queryHandler.SearchStudies)
		r.Get("/nodes/{id}/studies/{studyUID}/series", queryHandler.SearchSeries)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
