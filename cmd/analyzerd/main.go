package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"packetvault/internal/api/handlers"
	"packetvault/internal/api/router"
	"packetvault/internal/clients"
	"packetvault/internal/config"
	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
	"packetvault/internal/db/memstore"
	"packetvault/internal/db/postgres"
	"packetvault/internal/telemetry"
)

func main() {
	// --- 1. Telemetry & Configuration ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("booting analyzer service")

	_ = godotenv.Load()
	cfg := config.Load()

	// --- 2. Outbound Infrastructure ---
	var envStore domain.EnvelopeStore
	if cfg.StoreBackend == "postgres" {
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("FATAL: envelope DB failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		envStore = postgres.NewEnvelopeRepository(pool)
	} else {
		logger.Warn("using in-memory envelope store; expects ingestd in the same process in dev only")
		envStore = memstore.NewEnvelopeStore()
	}

	tokens := services.NewTokenService(cfg.ServiceTokenSecret)
	keys := clients.NewCustodianClient(cfg.CustodianURL, "analyzerd", tokens, cfg.KeyRequestTimeout, logger)

	// --- 3. Dependency Injection ---
	hub := telemetry.NewHub()
	retrieval := services.NewRetrievalService(envStore, keys, hub, logger)

	mux := router.NewAnalyzerRouter(router.AnalyzerConfig{
		AnalysisHandler: handlers.NewAnalysisHandler(retrieval, logger),
		AlertsHandler:   handlers.NewAlertsHandler(hub, logger),
		AllowedOrigins:  cfg.AllowedOrigins,
		Logger:          logger,
	})

	// --- 4. HTTP Gateway ---
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the alert websocket holds its connection open.
	}

	// --- 5. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("analyzer API active", "port", cfg.Port, "custodian", cfg.CustodianURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down analyzer service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("analyzer service stopped")
}
