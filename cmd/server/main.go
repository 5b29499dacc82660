package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"farmfresh-backend/internal/app"
	"farmfresh-backend/internal/config"
	"farmfresh-backend/internal/export"
	"farmfresh-backend/internal/handlers"
	"farmfresh-backend/internal/scheduler"
	"farmfresh-backend/pkg/logging"
	"farmfresh-backend/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("farmfresh-api", version, logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting FarmFresh API server", logging.Fields{
		"version":         version,
		"env":             cfg.Env,
		"server_host":     cfg.Server.Host,
		"server_port":     cfg.Server.Port,
		"dataset_path":    cfg.DatasetPath(),
		"refresh_cron":    cfg.Refresh.Cron,
		"refresh_on_read": cfg.Refresh.OnRead,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("farmfresh")

	// Initialize stores and services
	application, err := app.New(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialise services", logging.Fields{}, err)
	}

	// Daily forced refresh
	cronScheduler := scheduler.New(application.Prices, cfg.Refresh.JobTimeout, logger)
	if err := cronScheduler.Start(cfg.Refresh.Cron); err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start refresh scheduler", logging.Fields{"spec": cfg.Refresh.Cron}, err)
	}

	// Initialize handlers
	priceHandler := handlers.NewPriceHandler(application.Prices, export.Workbook, cfg.Server.PriceServicePort, logger, metricsCollector)
	authHandler := handlers.NewAuthHandler(application.Auth, logger, metricsCollector)
	classifyHandler := handlers.NewClassifyHandler(application.Classifier, cfg.Upload.Dir, cfg.Upload.MaxBodySize, logger, metricsCollector)
	systemHandler := handlers.NewSystemHandler(application.HealthCheckers, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID)
	router.Use(handlers.AccessLog(logger, metricsCollector))

	// Register routes
	priceHandler.RegisterRoutes(router)
	authHandler.RegisterRoutes(router)
	classifyHandler.RegisterRoutes(router)
	systemHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handlers.CORS(cfg.CORS.Origins)(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address":      server.Addr,
			"next_refresh": cronScheduler.Next(),
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	cronScheduler.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	if err := application.Close(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Failed to close connections", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
