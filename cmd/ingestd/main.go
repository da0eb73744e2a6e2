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
	"packetvault/internal/api/middleware"
	"packetvault/internal/api/router"
	"packetvault/internal/clients"
	"packetvault/internal/config"
	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
	"packetvault/internal/db/memstore"
	"packetvault/internal/db/postgres"
)

func main() {
	// --- 1. Telemetry & Configuration ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("booting ingest service")

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
		logger.Warn("using in-memory envelope store; envelopes will not survive a restart")
		envStore = memstore.NewEnvelopeStore()
	}

	tokens := services.NewTokenService(cfg.ServiceTokenSecret)
	keys := clients.NewCustodianClient(cfg.CustodianURL, "ingestd", tokens, cfg.KeyRequestTimeout, logger)

	// --- 3. Dependency Injection ---
	ingest := services.NewIngestService(keys, envStore, logger)

	mux := router.NewIngestRouter(router.IngestConfig{
		IngestHandler: handlers.NewIngestHandler(ingest, logger),
		Auth:          middleware.NewServiceAuthMiddleware(tokens, logger),
		Logger:        logger,
	})

	// --- 4. HTTP Gateway ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// --- 5. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("ingest API active", "port", cfg.Port, "custodian", cfg.CustodianURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down ingest service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("ingest service stopped")
}
