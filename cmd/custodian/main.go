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
	"packetvault/internal/config"
	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
	"packetvault/internal/db/memstore"
	"packetvault/internal/db/postgres"
	"packetvault/internal/infrastructure/crypto"
)

func main() {
	// --- 1. Telemetry & Configuration ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("booting key custodian")

	_ = godotenv.Load() // .env is optional outside development
	cfg := config.Load()

	// --- 2. Keyspace Backend ---
	var keyStore domain.KeyStore
	if cfg.StoreBackend == "postgres" {
		keyDB, err := postgres.NewKeyDB(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Error("FATAL: keystore DB failed", "error", err)
			os.Exit(1)
		}
		defer keyDB.Close()
		keyStore = postgres.NewKeyRepository(keyDB)
	} else {
		logger.Warn("using in-memory keystore; keys will not survive a restart")
		keyStore = memstore.NewKeyStore()
	}

	// --- 3. Dependency Injection ---
	kek, err := crypto.DeriveKEK([]byte(cfg.CustodianMasterSecret))
	if err != nil {
		logger.Error("FATAL: KEK derivation failed", "error", err)
		os.Exit(1)
	}

	custodian := services.NewCustodianService(keyStore, kek, logger)
	tokens := services.NewTokenService(cfg.ServiceTokenSecret)

	mux := router.NewCustodianRouter(router.CustodianConfig{
		KeyHandler: handlers.NewKeyHandler(custodian, logger),
		Auth:       middleware.NewServiceAuthMiddleware(tokens, logger),
		Logger:     logger,
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
		logger.Info("custodian API active", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("CRITICAL: server crashed", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down custodian")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("custodian stopped")
}
